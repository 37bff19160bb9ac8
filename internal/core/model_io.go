package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"geomodel/internal/blob"
	"geomodel/pkg/domain"
)

const modelContentType = "application/json"

// Export serialises the committed model, including the last solution, to JSON.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	var data []byte
	_, err := s.run(ctx, "export", EntitySolution, ActionCreate, func(context.Context) (Result, error) {
		snap := s.store.ExportState()
		out, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return Result{}, fmt.Errorf("encode model: %w", err)
		}
		data = out
		return Result{}, nil
	})
	return data, err
}

// Import rebuilds a service from data produced by Export. Derived columns
// and additional data are recomputed rather than trusted.
func Import(data []byte, engine *RulesEngine, opts ...Option) (*Service, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	state, err := restoreState(snap)
	if err != nil {
		return nil, fmt.Errorf("restore model: %w", err)
	}
	store := NewMemoryStore(engine)
	store.state = state
	return NewService(store, opts...), nil
}

// SaveModel exports the model and writes it to store under key.
func (s *Service) SaveModel(ctx context.Context, store blob.Store, key string) (blob.Info, error) {
	data, err := s.Export(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	var info blob.Info
	_, err = s.run(ctx, "save_model", EntitySolution, ActionCreate, func(ctx context.Context) (Result, error) {
		out, err := store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
			ContentType: modelContentType,
			Metadata: map[string]string{
				"project":  s.Project(ctx),
				"revision": strconv.FormatUint(s.Revision(), 10),
			},
		})
		if err != nil {
			return Result{}, fmt.Errorf("save model %s: %w", key, err)
		}
		info = out
		return Result{}, nil
	})
	return info, err
}

// LoadModel reads key from store and imports it.
func LoadModel(ctx context.Context, store blob.Store, key string, engine *RulesEngine, opts ...Option) (*Service, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", key, err)
	}
	return Import(data, engine, opts...)
}
