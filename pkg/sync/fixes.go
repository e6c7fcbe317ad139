package sync

import (
	"context"
	_ "embed"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/contentsync/pkg/catalog"
	"github.com/agentstation/contentsync/pkg/errors"
	"github.com/agentstation/contentsync/pkg/logging"
	"github.com/agentstation/contentsync/pkg/scc"
)

//go:embed fixes.yaml
var fixesYAML []byte

// legacyFixes is the rule table of known upstream data defects. It is
// data, not algorithm: the rules live in fixes.yaml so they can be
// reviewed and deleted independently of the merge code.
type legacyFixes struct {
	RepositoryMoves      []repositoryMove      `yaml:"repository_moves"`
	ContentSourceRepairs []contentSourceRepair `yaml:"content_source_repairs"`
}

// repositoryMove relinks a product from a retired duplicate repository
// id to the surviving one.
type repositoryMove struct {
	ProductID        int64 `yaml:"product_id"`
	FromRepositoryID int64 `yaml:"from_repository_id"`
	ToRepositoryID   int64 `yaml:"to_repository_id"`
}

// contentSourceRepair pins the content source of a channel to the auth
// of a specific repository.
type contentSourceRepair struct {
	ChannelLabel string `yaml:"channel_label"`
	RepositoryID int64  `yaml:"repository_id"`
}

func loadLegacyFixes() (legacyFixes, error) {
	var fixes legacyFixes
	if err := yaml.Unmarshal(fixesYAML, &fixes); err != nil {
		return legacyFixes{}, errors.NewConfigError("legacy fixes", "decoding embedded rule table", err)
	}
	return fixes, nil
}

// fixTreeEdges rewrites incoming tree edges still naming a retired
// duplicate repository id onto the surviving one, so the merged tree
// carries the fix and the moved links survive the orphan pruning.
func fixTreeEdges(ctx context.Context, st catalog.Store, edges []scc.TreeEdgeRecord) []scc.TreeEdgeRecord {
	log := logging.FromContext(ctx)

	fixes, err := loadLegacyFixes()
	if err != nil {
		log.Error().Err(err).Msg("Legacy fix table unavailable, merging tree as served")
		return edges
	}
	if len(fixes.RepositoryMoves) == 0 {
		return edges
	}

	out := make([]scc.TreeEdgeRecord, len(edges))
	copy(out, edges)
	for _, move := range fixes.RepositoryMoves {
		if _, ok := st.Repository(move.ToRepositoryID); !ok {
			continue
		}
		for i := range out {
			if out[i].ProductID != move.ProductID || out[i].RepositoryID != move.FromRepositoryID {
				continue
			}
			log.Info().Str("channel", out[i].ChannelLabel).
				Int64("from", move.FromRepositoryID).Int64("to", move.ToRepositoryID).
				Msg("Rewriting tree edge off duplicate repository id")
			out[i].RepositoryID = move.ToRepositoryID
		}
	}
	return out
}

// applyLegacyFixes runs the rule table against the store. Rules whose
// entities are absent are no-ops.
func applyLegacyFixes(ctx context.Context, st catalog.Store) error {
	log := logging.FromContext(ctx)

	fixes, err := loadLegacyFixes()
	if err != nil {
		return err
	}

	for _, move := range fixes.RepositoryMoves {
		if _, ok := st.Repository(move.ToRepositoryID); !ok {
			continue
		}
		for _, l := range st.Links() {
			if l.ProductID != move.ProductID || l.RepositoryID != move.FromRepositoryID {
				continue
			}
			log.Info().Str("channel", l.ChannelLabel).
				Int64("from", move.FromRepositoryID).Int64("to", move.ToRepositoryID).
				Msg("Moving link off duplicate repository id")
			st.DeleteLink(l.Key())
			l.RepositoryID = move.ToRepositoryID
			st.SaveLink(l)
		}
	}

	for _, repair := range fixes.ContentSourceRepairs {
		cs, ok := st.ContentSource(repair.ChannelLabel)
		if !ok {
			continue
		}
		best, ok := st.BestAuth(repair.RepositoryID)
		if !ok || best.ContentSourceLabel == repair.ChannelLabel {
			continue
		}
		for _, a := range st.Auths() {
			if a.ContentSourceLabel == repair.ChannelLabel {
				a.ContentSourceLabel = ""
				st.SaveAuth(a)
			}
		}
		log.Info().Str("channel", repair.ChannelLabel).Int64("repository", repair.RepositoryID).
			Msg("Repairing content source repository link")
		best.ContentSourceLabel = repair.ChannelLabel
		st.SaveAuth(best)
		cs.URL = best.URL
		st.SaveContentSource(cs)
	}
	return nil
}
