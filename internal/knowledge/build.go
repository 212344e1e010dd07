package knowledge

import (
	"context"

	"github.com/rs/zerolog"
)

// Options controls how a snapshot is assembled.
type Options struct {
	Dir     string
	PDF     PDFExtractor
	Cap     int
	Bundled bool
}

// Build loads the bundled corpus (when enabled) and the directory, merges
// them by title and returns a fresh snapshot. Directory passages lose to
// bundled ones on duplicate titles.
func Build(ctx context.Context, opts Options, log *zerolog.Logger) (*Base, error) {
	var sets [][]Document
	if opts.Bundled {
		bundled, err := BundledCorpus()
		if err != nil {
			return nil, err
		}
		sets = append(sets, bundled)
	}
	fromDir, err := LoadDir(ctx, opts.Dir, opts.PDF, log)
	if err != nil {
		return nil, err
	}
	sets = append(sets, fromDir)

	docs, dropped := Merge(sets...)
	for _, title := range dropped {
		log.Warn().Str("title", title).Msg("duplicate knowledge title skipped")
	}
	b, err := New(docs, opts.Cap)
	if err != nil {
		return nil, err
	}
	log.Info().Int("passages", b.Len()).Str("dir", opts.Dir).Msg("knowledge snapshot built")
	return b, nil
}
