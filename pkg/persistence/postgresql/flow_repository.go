package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence"
)

// FlowRepository handles flow-graph database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

// FlowByID returns a flow with its nodes and edges in declaration order.
func (r *FlowRepository) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	return flowByID(ctx, r.db, r.logger, id)
}

func flowByID(ctx context.Context, q querier, logger *slog.Logger, id string) (*models.Flow, error) {
	query := `
		SELECT
			id
		  , name
		  , created_at
		  , updated_at
		FROM flows
		WHERE id = $1
	`

	flow := &models.Flow{}

	err := q.QueryRowContext(ctx, query, id).Scan(&flow.ID, &flow.Name, &flow.CreatedAt, &flow.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFlowNotFound
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	flow.Nodes, err = flowNodes(ctx, q, logger, id)
	if err != nil {
		return nil, err
	}

	flow.Edges, err = flowEdges(ctx, q, logger, id)
	if err != nil {
		return nil, err
	}

	return flow, nil
}

func flowNodes(ctx context.Context, q querier, logger *slog.Logger, flowID string) ([]*models.FlowNode, error) {
	query := `
		SELECT
			id
		  , node_type
		  , label
		  , step_code
		  , comment_required
		  , attachment_required
		FROM flow_nodes
		WHERE flow_id = $1
		ORDER BY position
	`

	rows, err := q.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow nodes: %w", err)
	}

	defer closeRows(ctx, rows, logger)

	nodes := make([]*models.FlowNode, 0)

	for rows.Next() {
		node := &models.FlowNode{}

		err := rows.Scan(&node.ID, &node.Type, &node.Label, &node.StepCode,
			&node.Rules.CommentRequired, &node.Rules.AttachmentRequired)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow node: %w", err)
		}

		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flow nodes: %w", err)
	}

	return nodes, nil
}

func flowEdges(ctx context.Context, q querier, logger *slog.Logger, flowID string) ([]*models.FlowEdge, error) {
	query := `
		SELECT
			id
		  , source_node_id
		  , target_node_id
		  , condition_type
		FROM flow_edges
		WHERE flow_id = $1
		ORDER BY position
	`

	rows, err := q.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow edges: %w", err)
	}

	defer closeRows(ctx, rows, logger)

	edges := make([]*models.FlowEdge, 0)

	for rows.Next() {
		edge := &models.FlowEdge{}

		err := rows.Scan(&edge.ID, &edge.SourceNodeID, &edge.TargetNodeID, &edge.Condition)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow edge: %w", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flow edges: %w", err)
	}

	return edges, nil
}

// Save stores a flow and replaces its nodes and edges. Exists for the flow
// designer module, seeding and tests; the engine never writes flows.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	flowQuery := `
		INSERT INTO flows (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, flowQuery, flow.ID, flow.Name, flow.CreatedAt, flow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save flow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM flow_edges WHERE flow_id = $1", flow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing edges: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM flow_nodes WHERE flow_id = $1", flow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	nodeQuery := `
		INSERT INTO flow_nodes (flow_id, id, node_type, label, step_code,
comment_required, attachment_required, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for position, node := range flow.Nodes {
		_, err = tx.ExecContext(ctx, nodeQuery, flow.ID, node.ID, node.Type, node.Label,
			node.StepCode, node.Rules.CommentRequired, node.Rules.AttachmentRequired, position)
		if err != nil {
			return fmt.Errorf("failed to save flow node %s: %w", node.ID, err)
		}
	}

	edgeQuery := `
		INSERT INTO flow_edges (flow_id, id, source_node_id, target_node_id, condition_type, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for position, edge := range flow.Edges {
		_, err = tx.ExecContext(ctx, edgeQuery, flow.ID, edge.ID, edge.SourceNodeID,
			edge.TargetNodeID, edge.Condition, position)
		if err != nil {
			return fmt.Errorf("failed to save flow edge %s: %w", edge.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit flow save: %w", err)
	}

	return nil
}

func closeRows(ctx context.Context, rows *sql.Rows, logger *slog.Logger) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}
