package badger

import (
	"errors"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// gcDiscardRatio is the fraction of stale data a value log file needs before it is rewritten on close
const gcDiscardRatio = 0.5

// BadgerDB owns the badgerhold store shared by the user, task and token stores
type BadgerDB struct {
	store  *badgerhold.Store
	path   string
	logger arbor.ILogger
}

func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("storage.badger.path is required")
	}

	if config.ResetOnStartup {
		if err := resetDirectory(config.Path); err != nil {
			logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to reset task database")
		} else {
			logger.Debug().Str("path", config.Path).Msg("Task database reset (reset_on_startup=true)")
		}
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Options = badgerdb.DefaultOptions(config.Path).
		WithLogger(nil).
		WithNumVersionsToKeep(1)

	store, err := badgerhold.Open(options)
	if err != nil {
		logger.Error().Err(err).Str("path", config.Path).Msg("Failed to open task database")
		return nil, fmt.Errorf("failed to open badger database at %s: %w", config.Path, err)
	}

	logger.Debug().Str("path", config.Path).Msg("Task database opened")

	return &BadgerDB{store: store, path: config.Path, logger: logger}, nil
}

func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close reclaims value log space left by deleted tasks and purged tokens, then closes the store
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}

	for {
		err := b.store.Badger().RunValueLogGC(gcDiscardRatio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badgerdb.ErrNoRewrite) {
			b.logger.Debug().Err(err).Str("path", b.path).Msg("Value log GC skipped")
		}
		break
	}

	err := b.store.Close()
	b.store = nil
	return err
}

func resetDirectory(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(path)
}
