// Package ingest turns the first-parent history of a Git repository into
// transactions over the structural model.
package ingest

import (
	"fmt"
	"log/slog"

	"decap/internal/gitio"
	"decap/internal/logging"
	"decap/internal/scope"
	"decap/model"
	"decap/parse"
	"decap/transaction"
)

// Ingester replays commits through the parser, keeping the last parsed tree
// of every in-scope source unit.
type Ingester struct {
	repo   *gitio.Repository
	parser *parse.Parser
	scope  *scope.Scope
	logger *slog.Logger
	units  map[string]*model.Node
}

// New creates an ingester. A nil logger discards output.
func New(repo *gitio.Repository, parser *parse.Parser, s *scope.Scope, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Ingester{
		repo:   repo,
		parser: parser,
		scope:  s,
		logger: logger,
		units:  make(map[string]*model.Node),
	}
}

// Transactions returns one transaction per first-parent commit reachable
// from ref, oldest first. The transaction id is the commit hash.
func (in *Ingester) Transactions(ref string) ([]*transaction.Transaction, error) {
	commits, err := in.repo.FirstParentHistory(ref)
	if err != nil {
		return nil, err
	}

	in.units = make(map[string]*model.Node)
	txs := make([]*transaction.Transaction, 0, len(commits))
	for _, c := range commits {
		changes, err := in.repo.ChangedFiles(c)
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", c.Hash, err)
		}

		var edits []model.Edit
		for _, change := range changes {
			if !in.scope.Match(change.Path) {
				continue
			}
			edits = append(edits, in.unitEdits(c.Hash.String(), change)...)
		}

		txs = append(txs, transaction.New(c.Hash.String(), edits,
			transaction.WithDate(c.Author.When),
			transaction.WithAuthor(gitio.Author(c)),
		))
		in.logger.Debug("commit ingested", "commit", c.Hash.String(), "files", len(changes), "edits", len(edits))
	}

	in.logger.Info("history ingested", "ref", ref, "transactions", len(txs), "units", len(in.units))
	return txs, nil
}

// unitEdits diffs one changed file against its last parsed state. A file
// that fails to parse keeps its previous state.
func (in *Ingester) unitEdits(commit string, change gitio.Change) []model.Edit {
	before := in.units[change.Path]

	var after *model.Node
	if !change.Deleted() {
		unit, err := in.parser.ParseUnit(change.Path, change.After)
		if err != nil {
			in.logger.Warn("skipping unparsable file", "commit", commit, "path", change.Path, "error", err)
			return nil
		}
		after = &unit
	}

	edits := DiffUnits(before, after)
	if after == nil {
		delete(in.units, change.Path)
	} else {
		in.units[change.Path] = after
	}
	return edits
}
