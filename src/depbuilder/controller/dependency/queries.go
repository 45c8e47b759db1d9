package dependency

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/internal/errors"
	"github.com/uber/depbuilder/src/depbuilder/mapper"
	"github.com/uber/depbuilder/src/depbuilder/repository/cache"
)

// _maxSnippetLines bounds the definition source attached to a symbol lookup.
const _maxSnippetLines = 200

// encodeFunc converts a server payload into the stored form of a result, without its meta.
type encodeFunc func(payload json.RawMessage) ([]byte, error)

// answer is the stored form of a result together with how it was obtained.
type answer struct {
	value []byte
	meta  entity.ResultMeta
	req   *entity.Request
}

// LookupSymbol implements Service.
func (s *service) LookupSymbol(ctx context.Context, path string, pos entity.Position) (*entity.SymbolResult, error) {
	req := &entity.Request{Method: entity.MethodSymbolLookup, Path: path, Position: pos}
	a, err := s.query(ctx, req, func(payload json.RawMessage) ([]byte, error) {
		locations, err := mapper.DecodeLocations(payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entity.SymbolResult{Path: req.Path, Position: req.Position, Definitions: locations})
	})
	if err != nil {
		return nil, err
	}

	result, err := decodeAnswer[entity.SymbolResult](a)
	if err != nil {
		return nil, err
	}
	if len(result.Definitions) > 0 {
		result.Snippet = s.snippet(result.Definitions[0])
	}
	return result, nil
}

// CallHierarchy implements Service.
func (s *service) CallHierarchy(ctx context.Context, path string, pos entity.Position) (*entity.CallHierarchyResult, error) {
	req := &entity.Request{Method: entity.MethodCallHierarchy, Path: path, Position: pos}
	a, err := s.query(ctx, req, func(payload json.RawMessage) ([]byte, error) {
		result, err := mapper.DecodeCallHierarchy(payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		return nil, err
	}
	return decodeAnswer[entity.CallHierarchyResult](a)
}

// FindReferences implements Service.
func (s *service) FindReferences(ctx context.Context, path string, pos entity.Position) (*entity.ReferencesResult, error) {
	req := &entity.Request{Method: entity.MethodReferences, Path: path, Position: pos}
	a, err := s.query(ctx, req, func(payload json.RawMessage) ([]byte, error) {
		locations, err := mapper.DecodeLocations(payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entity.ReferencesResult{Locations: locations})
	})
	if err != nil {
		return nil, err
	}
	return decodeAnswer[entity.ReferencesResult](a)
}

// TypeDefinition implements Service.
func (s *service) TypeDefinition(ctx context.Context, path string, pos entity.Position) (*entity.TypeDefinitionResult, error) {
	req := &entity.Request{Method: entity.MethodTypeDefinition, Path: path, Position: pos}
	a, err := s.query(ctx, req, func(payload json.RawMessage) ([]byte, error) {
		locations, err := mapper.DecodeLocations(payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entity.TypeDefinitionResult{Definitions: locations})
	})
	if err != nil {
		return nil, err
	}
	return decodeAnswer[entity.TypeDefinitionResult](a)
}

// WorkspaceSymbols implements Service.
func (s *service) WorkspaceSymbols(ctx context.Context, query string) (*entity.WorkspaceSymbolsResult, error) {
	req := &entity.Request{Method: entity.MethodWorkspaceSymbol, Query: query}
	a, err := s.query(ctx, req, func(payload json.RawMessage) ([]byte, error) {
		symbols, err := mapper.DecodeSymbols(payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entity.WorkspaceSymbolsResult{Query: req.Query, Symbols: symbols})
	})
	if err != nil {
		return nil, err
	}
	return decodeAnswer[entity.WorkspaceSymbolsResult](a)
}

// DocumentSymbols implements Service.
func (s *service) DocumentSymbols(ctx context.Context, path string) (*entity.DocumentSymbolsResult, error) {
	req := &entity.Request{Method: entity.MethodDocumentSymbol, Path: path}
	a, err := s.query(ctx, req, func(payload json.RawMessage) ([]byte, error) {
		symbols, err := mapper.DecodeDocumentSymbols(payload)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entity.DocumentSymbolsResult{Path: req.Path, Symbols: symbols})
	})
	if err != nil {
		return nil, err
	}
	return decodeAnswer[entity.DocumentSymbolsResult](a)
}

// query runs one logical query: validate, look up the cache, and on a miss dispatch with retry
// and store the encoded result. Failures carry the method, file and position of the query.
func (s *service) query(ctx context.Context, req *entity.Request, encode encodeFunc) (a *answer, err error) {
	start := time.Now()
	method, position := req.Method.String(), req.PositionLabel()
	defer func() {
		if err == nil {
			return
		}
		err = errors.WithQuery(err, method, req.Path, position)
		if errors.IsBadRequest(err) {
			s.logger.Debugw("query rejected", "method", method, "file", req.Path, "error", err)
			return
		}
		s.logger.Warnw("query failed",
			"method", method,
			"file", req.Path,
			"position", position,
			"elapsed", time.Since(start),
			"correlationID", req.CorrelationID,
			"error", err,
		)
	}()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if req.Method.RequiresDocument() {
		resolved, err := s.resolve(req.Path)
		if err != nil {
			return nil, err
		}
		req.Path = resolved
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errors.FromContext(ctx)
	}

	var doc *cache.Content
	if req.Method.RequiresDocument() {
		if doc, err = s.hasher.Hash(ctx, req.Path); err != nil {
			if ctx.Err() != nil {
				return nil, errors.FromContext(ctx)
			}
			return nil, errors.Wrap(errors.InvalidRequest, err)
		}
		if err := s.watcher.Track(req.Path); err != nil {
			s.logger.Warnw("file changes will not be watched", "file", req.Path, "error", err)
		}
	}

	fetch := func(ctx context.Context) ([]byte, error) {
		return s.execute(ctx, req, doc, encode)
	}

	var (
		value  []byte
		cached bool
	)
	if req.Method.Cacheable() {
		key := entity.CacheKey{Path: req.Path, ContentHash: doc.Hash, Method: req.Method, Position: req.Position}
		value, cached, err = s.cache.Fetch(ctx, key, fetch)
	} else {
		value, err = fetch(ctx)
	}
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	s.logger.Infow("query",
		"method", method,
		"file", req.Path,
		"position", position,
		"cached", cached,
		"elapsed", elapsed,
		"correlationID", req.CorrelationID,
	)
	return &answer{
		value: value,
		meta:  entity.NewResultMeta(cached, elapsed),
		req:   req,
	}, nil
}

// resultWithMeta is implemented by every result type through its embedded ResultMeta.
type resultWithMeta interface {
	entity.SymbolResult | entity.CallHierarchyResult | entity.ReferencesResult |
		entity.TypeDefinitionResult | entity.WorkspaceSymbolsResult | entity.DocumentSymbolsResult
}

func decodeAnswer[T resultWithMeta](a *answer) (*T, error) {
	var result T
	if err := json.Unmarshal(a.value, &result); err != nil {
		return nil, errors.WithQuery(
			errors.Wrap(errors.ProtocolError, fmt.Errorf("decoding stored result: %w", err)),
			a.req.Method.String(), a.req.Path, a.req.PositionLabel(),
		)
	}
	setMeta(&result, a.meta)
	return &result, nil
}

func setMeta(result interface{}, meta entity.ResultMeta) {
	switch r := result.(type) {
	case *entity.SymbolResult:
		r.ResultMeta = meta
	case *entity.CallHierarchyResult:
		r.ResultMeta = meta
	case *entity.ReferencesResult:
		r.ResultMeta = meta
	case *entity.TypeDefinitionResult:
		r.ResultMeta = meta
	case *entity.WorkspaceSymbolsResult:
		r.ResultMeta = meta
	case *entity.DocumentSymbolsResult:
		r.ResultMeta = meta
	}
}

// snippet returns the source lines spanned by loc, or empty when the file cannot be read.
func (s *service) snippet(loc entity.Location) string {
	data, err := s.fs.ReadFile(loc.Path)
	if err != nil {
		s.logger.Debugw("reading definition source", "file", loc.Path, "error", err)
		return ""
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	start, end := loc.Range.Start.Line, loc.Range.End.Line
	if start < 0 || start >= len(lines) {
		return ""
	}
	if end < start {
		end = start
	}
	if end-start >= _maxSnippetLines {
		end = start + _maxSnippetLines - 1
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	return strings.Join(lines[start:end+1], "\n")
}
