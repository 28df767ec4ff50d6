// Package search implements the hybrid retrieval engine: query embedding,
// vector search across every vector-capable backend, a keyword-assisted pass
// that recovers lexical matches embeddings under-rank, and the merge /
// deduplicate / diversify ranking that turns raw per-backend hits into one
// relevant-chunk list. The engine never fails: when the embedding capability
// or every backend errors, it degrades to a pure keyword scan, and an empty
// list is a valid outcome.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/embedder"
	"github.com/54b3r/ragstore-go/internal/logging"
	"github.com/54b3r/ragstore-go/internal/storage"
)

// Ranking constants preserved from the tuned heuristics of the reference
// ranking pipeline. Overridable per engine through Options.
const (
	// DefaultTopPerDocument caps how many chunks of one document can enter
	// the diversity set, so a single highly-relevant document cannot crowd
	// out all others.
	DefaultTopPerDocument = 3

	// DefaultBreadthFactor scales the requested count k into the breadth
	// the engine returns (k * factor), leaving an upstream re-ranker room.
	DefaultBreadthFactor = 3

	// DefaultOverFetchFactor scales k into the per-backend fetch size so
	// diversity selection has material to work with.
	DefaultOverFetchFactor = 4

	// MinOverFetch is the floor on the per-backend fetch size.
	MinOverFetch = 20

	// KeywordFloor is the minimum term-overlap score a keyword hit needs
	// to become a candidate.
	KeywordFloor = 0.1

	// FallbackScore is the neutral relevance assigned to pure-scan matches
	// on the degraded path, where no meaningful ranking signal exists.
	FallbackScore = 0.5
)

// DefaultLimit is the result count used when a caller passes limit <= 0.
const DefaultLimit = 5

// Options tunes the ranking constants of an Engine. Zero values fall back
// to the defaults above.
type Options struct {
	// TopPerDocument overrides DefaultTopPerDocument.
	TopPerDocument int
	// BreadthFactor overrides DefaultBreadthFactor.
	BreadthFactor int
	// OverFetchFactor overrides DefaultOverFetchFactor.
	OverFetchFactor int
	// CacheTTL overrides DefaultCacheTTL.
	CacheTTL time.Duration
}

// Engine orchestrates hybrid retrieval over one or more storage backends.
// All state is per-instance — multiple independent engines can coexist in
// one process (and one test).
type Engine struct {
	// stores are the backends queried, each through the capabilities it
	// advertises.
	stores []storage.Store

	// embedder computes the query embedding. May be nil: the engine then
	// runs on the keyword path alone.
	embedder embedder.Embedder

	// cache absorbs duplicate queries within the TTL window.
	cache *Cache

	// topPerDocument, breadthFactor, overFetchFactor are the resolved
	// ranking constants.
	topPerDocument  int
	breadthFactor   int
	overFetchFactor int
}

// candidate is one scored hit flowing through the ranking pipeline.
type candidate struct {
	// chunk is the hit itself.
	chunk document.Chunk
	// score is the normalized similarity in [0, 1].
	score float64
	// origin names the backend the hit came from.
	origin string
	// seq is the arrival order, the deterministic tie-breaker.
	seq int
}

// NewEngine constructs an Engine over the given backends. emb may be nil.
func NewEngine(stores []storage.Store, emb embedder.Embedder, opts Options) *Engine {
	e := &Engine{
		stores:          stores,
		embedder:        emb,
		cache:           NewCache(opts.CacheTTL),
		topPerDocument:  opts.TopPerDocument,
		breadthFactor:   opts.BreadthFactor,
		overFetchFactor: opts.OverFetchFactor,
	}
	if e.topPerDocument <= 0 {
		e.topPerDocument = DefaultTopPerDocument
	}
	if e.breadthFactor <= 0 {
		e.breadthFactor = DefaultBreadthFactor
	}
	if e.overFetchFactor <= 0 {
		e.overFetchFactor = DefaultOverFetchFactor
	}
	return e
}

// Search returns the most relevant chunks for the query, up to
// limit * BreadthFactor entries sorted by descending relevance — callers
// that want exactly limit results truncate. It never returns an error: every
// failure degrades (vector -> keyword -> empty) and an empty list is a
// valid outcome of zero matches.
func (e *Engine) Search(ctx context.Context, query string, limit int) []document.Chunk {
	if limit <= 0 {
		limit = DefaultLimit
	}
	normalized := NormalizeQuery(query)
	if normalized == "" {
		return nil
	}

	if cached, ok := e.cache.Get(normalized, limit); ok {
		return cached
	}

	// Strategies run in declared order until one yields candidates. The
	// hybrid pass exhausts the vector and keyword paths; the scan pass is
	// the last-resort degradation and cannot itself fail.
	strategies := []func(ctx context.Context, query string, limit int) ([]candidate, bool){
		e.hybridPass,
		e.scanPass,
	}

	var results []document.Chunk
	for _, strategy := range strategies {
		candidates, exhausted := strategy(ctx, normalized, limit)
		if len(candidates) > 0 {
			results = e.rank(candidates, limit)
			break
		}
		if !exhausted {
			break
		}
	}

	e.cache.Put(normalized, limit, results)
	return results
}

// overFetch is the per-backend fetch size for a requested count.
func (e *Engine) overFetch(limit int) int {
	n := limit * e.overFetchFactor
	if n < MinOverFetch {
		n = MinOverFetch
	}
	return n
}

// hybridPass runs the vector and keyword paths concurrently and merges
// their hits into one candidate list. The second return value reports
// whether the pass is exhausted — true means the caller may degrade further.
func (e *Engine) hybridPass(ctx context.Context, query string, limit int) ([]candidate, bool) {
	fetch := e.overFetch(limit)

	var (
		wg      sync.WaitGroup
		vector  []storage.ScoredChunk
		origins []string
		keyword []candidate
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vector, origins = e.vectorHits(ctx, query, fetch)
	}()
	go func() {
		defer wg.Done()
		keyword = e.keywordHits(ctx, query, fetch)
	}()
	wg.Wait()

	candidates := make([]candidate, 0, len(vector)+len(keyword))
	for i, hit := range vector {
		candidates = append(candidates, candidate{
			chunk:  hit.Chunk,
			score:  hit.Score,
			origin: origins[i],
		})
	}
	candidates = append(candidates, keyword...)
	for i := range candidates {
		candidates[i].seq = i
	}
	return candidates, true
}

// vectorHits embeds the query and runs it against every vector-capable
// backend, returning hits with scores already normalized onto [0, 1] and a
// parallel slice of origin names. A failed embedding or a failed backend is
// logged and skipped — never surfaced.
func (e *Engine) vectorHits(ctx context.Context, query string, fetch int) ([]storage.ScoredChunk, []string) {
	log := logging.FromContext(ctx)

	if e.embedder == nil {
		return nil, nil
	}
	vec, err := embedder.EmbedOne(ctx, e.embedder, query)
	if err != nil || len(vec) == 0 {
		if err != nil {
			log.Warn("query embedding failed, continuing on keyword path",
				slog.String("error", err.Error()))
		}
		return nil, nil
	}

	var (
		hits    []storage.ScoredChunk
		origins []string
	)
	for _, store := range e.stores {
		if !store.Capabilities().VectorSearch {
			continue
		}
		raw, err := store.SearchVector(ctx, vec, fetch)
		if err != nil {
			log.Warn("vector search failed, skipping backend",
				slog.String("backend", store.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, hit := range raw {
			hit.Score = NormalizeScore(store.Metric(), hit.Score)
			hits = append(hits, hit)
			origins = append(origins, store.Name())
		}
	}
	return hits, origins
}

// keywordHits runs the keyword-assisted pass: meaningful query terms are
// extracted and every text-capable backend's hits are re-scored by term
// overlap, keeping those above the floor. This pass runs even when vector
// search succeeds, to recover exact names and codes embeddings under-rank.
func (e *Engine) keywordHits(ctx context.Context, query string, fetch int) []candidate {
	log := logging.FromContext(ctx)

	terms := ExtractTerms(query)
	if len(terms) == 0 {
		return nil
	}

	var out []candidate
	for _, store := range e.stores {
		if !store.Capabilities().TextSearch {
			continue
		}
		raw, err := store.SearchText(ctx, query, fetch)
		if err != nil {
			log.Warn("keyword search failed, skipping backend",
				slog.String("backend", store.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, hit := range raw {
			score := TermOverlap(hit.Chunk.Content, terms)
			if score <= KeywordFloor {
				continue
			}
			out = append(out, candidate{chunk: hit.Chunk, score: score, origin: store.Name()})
		}
	}
	return out
}

// scanPass is the degraded fallback: a plain substring scan over every chunk
// of every backend, scored at the neutral constant. It cannot fail — backend
// errors shrink the scan, and zero matches yield an empty, exhausted result.
func (e *Engine) scanPass(ctx context.Context, query string, limit int) ([]candidate, bool) {
	log := logging.FromContext(ctx)

	terms := ExtractTerms(query)
	seq := 0
	var out []candidate
	for _, store := range e.stores {
		docs, err := store.GetAll(ctx)
		if err != nil {
			log.Warn("fallback scan failed, skipping backend",
				slog.String("backend", store.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, doc := range docs {
			for i := range doc.Chunks {
				c := &doc.Chunks[i]
				if !scanMatches(c.Content, query, terms) {
					continue
				}
				out = append(out, candidate{
					chunk:  c.Clone(),
					score:  FallbackScore,
					origin: store.Name(),
					seq:    seq,
				})
				seq++
				if len(out) >= limit {
					return out, true
				}
			}
		}
	}
	return out, true
}

// scanMatches reports whether content matches the degraded-path query: the
// whole normalized query as a substring, or any extracted term. query and
// terms are already lower-cased by the caller.
func scanMatches(content, query string, terms []string) bool {
	lower := strings.ToLower(content)
	if query != "" && strings.Contains(lower, query) {
		return true
	}
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// rank runs the deterministic merge pipeline: deduplicate by
// (documentID, chunkIndex) keeping the best score, diversify to at most
// topPerDocument chunks per document, fill the remaining breadth with the
// best leftovers, and sort by descending score.
func (e *Engine) rank(candidates []candidate, limit int) []document.Chunk {
	// Deduplicate: one entry per (documentID, chunkIndex), highest score
	// wins, earliest arrival breaks ties.
	type dedupKey struct {
		docID string
		index int
	}
	best := make(map[dedupKey]candidate, len(candidates))
	for _, c := range candidates {
		k := dedupKey{docID: c.chunk.DocumentID, index: c.chunk.Index}
		cur, ok := best[k]
		if !ok || c.score > cur.score {
			best[k] = c
		}
	}

	deduped := make([]candidate, 0, len(best))
	for _, c := range best {
		deduped = append(deduped, c)
	}
	sortCandidates(deduped)

	// Diversify: per document, keep the top min(topPerDocument, limit).
	perDoc := e.topPerDocument
	if limit < perDoc {
		perDoc = limit
	}
	taken := make(map[string]int)
	inA := make(map[dedupKey]bool)
	var selected []candidate
	for _, c := range deduped {
		if taken[c.chunk.DocumentID] >= perDoc {
			continue
		}
		taken[c.chunk.DocumentID]++
		inA[dedupKey{docID: c.chunk.DocumentID, index: c.chunk.Index}] = true
		selected = append(selected, c)
	}

	// Fill remaining slots with the best candidates diversity passed over.
	breadth := limit * e.breadthFactor
	if remaining := breadth - len(selected); remaining > 0 {
		for _, c := range deduped {
			if remaining == 0 {
				break
			}
			if inA[dedupKey{docID: c.chunk.DocumentID, index: c.chunk.Index}] {
				continue
			}
			selected = append(selected, c)
			remaining--
		}
	}

	sortCandidates(selected)
	if len(selected) > breadth {
		selected = selected[:breadth]
	}

	out := make([]document.Chunk, len(selected))
	for i, c := range selected {
		chunk := c.chunk.Clone()
		chunk.RelevanceScore = c.score
		out[i] = chunk
	}
	return out
}

// sortCandidates orders by descending score with a deterministic tie-break
// on arrival order, then (documentID, chunkIndex).
func sortCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].score != cs[j].score {
			return cs[i].score > cs[j].score
		}
		if cs[i].seq != cs[j].seq {
			return cs[i].seq < cs[j].seq
		}
		if cs[i].chunk.DocumentID != cs[j].chunk.DocumentID {
			return cs[i].chunk.DocumentID < cs[j].chunk.DocumentID
		}
		return cs[i].chunk.Index < cs[j].chunk.Index
	})
}
