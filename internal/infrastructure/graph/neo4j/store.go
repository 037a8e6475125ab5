package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

const (
	maxEntityMatches  = 5
	maxDocumentsPerOp = 20
)

const cypherOneHop = `
MATCH (e:Entity)-[m:MENTIONED_IN]->(d:Document)
WHERE toLower(e.name) = toLower($name)
RETURN d.document_id AS document_id, m.page AS page, null AS related_to
LIMIT $limit`

const cypherTwoHop = `
MATCH (e:Entity)-[:RELATED_TO]-(r:Entity)-[m:MENTIONED_IN]->(d:Document)
WHERE toLower(e.name) = toLower($name)
RETURN d.document_id AS document_id, m.page AS page, r.name AS related_to
LIMIT $limit`

const cypherEntitySearch = `
MATCH (e:Entity)
WHERE toLower(e.name) CONTAINS toLower($term)
RETURN e.name AS name, e.type AS type
ORDER BY size(e.name)
LIMIT $limit`

// Store reads the filings knowledge graph. Entities carry MENTIONED_IN
// edges to documents (with a page property) and RELATED_TO edges to
// other entities for two-hop traversal.
type Store struct {
	driver neo4j.DriverWithContext
	logger *slog.Logger
}

func NewStore(uri, username, password string, logger *slog.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "neo4j.connect", err)
	}
	return &Store{driver: driver, logger: logger}, nil
}

func (s *Store) FindDocumentsMentioning(ctx context.Context, entity string, hops int) ([]domain.GraphDocumentRef, error) {
	cypher := cypherOneHop
	if hops >= 2 {
		cypher = cypherTwoHop
	}

	records, err := s.readRecords(ctx, cypher, map[string]any{
		"name":  entity,
		"limit": maxDocumentsPerOp,
	})
	if err != nil {
		return nil, classifyGraphError("neo4j.find_documents", err)
	}

	refs := make([]domain.GraphDocumentRef, 0, len(records))
	for _, record := range records {
		ref := domain.GraphDocumentRef{
			DocumentID: recordString(record, "document_id"),
			Page:       recordInt(record, "page"),
			RelatedTo:  recordString(record, "related_to"),
		}
		if ref.DocumentID == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *Store) EntitySearch(ctx context.Context, term string) ([]ports.GraphEntity, error) {
	records, err := s.readRecords(ctx, cypherEntitySearch, map[string]any{
		"term":  term,
		"limit": maxEntityMatches,
	})
	if err != nil {
		return nil, classifyGraphError("neo4j.entity_search", err)
	}

	entities := make([]ports.GraphEntity, 0, len(records))
	for _, record := range records {
		name := recordString(record, "name")
		if name == "" {
			continue
		}
		entities = append(entities, ports.GraphEntity{
			Name: name,
			Type: recordString(record, "type"),
		})
	}
	return entities, nil
}

func (s *Store) Verify(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return classifyGraphError("neo4j.verify", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) readRecords(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer func() {
		if err := session.Close(ctx); err != nil {
			s.logger.Warn("neo4j_session_close_failed", "error", err)
		}
	}()

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cursor, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return cursor.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, ok := result.([]*neo4j.Record)
	if !ok {
		return nil, fmt.Errorf("unexpected neo4j result type %T", result)
	}
	return records, nil
}

// classifyGraphError separates a paused or hibernated graph instance,
// which callers treat as a stale client to discard, from ordinary
// connectivity failures.
func classifyGraphError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if isPausedInstanceError(err) {
		return domain.WrapError(domain.ErrGraphPaused, operation, err)
	}
	return domain.WrapError(domain.ErrConnectivity, operation, err)
}

func isPausedInstanceError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "paused") ||
		strings.Contains(msg, "defunct connection") ||
		strings.Contains(msg, "connection pool closed")
}

func recordString(record *neo4j.Record, key string) string {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return ""
	}
	text, _ := value.(string)
	return text
}

func recordInt(record *neo4j.Record, key string) int {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return 0
	}
	number, _ := value.(int64)
	return int(number)
}
