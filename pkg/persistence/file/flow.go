package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
)

const flowsDir = "flows"

// FlowRepository handles flow-related file operations.
type FlowRepository struct {
	root string
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(root string) *FlowRepository {
	return &FlowRepository{root: root}
}

// GetAll returns all flows ordered by creation time.
func (fr *FlowRepository) GetAll(_ context.Context) ([]*models.FlowDefinition, error) {
	flows := make([]*models.FlowDefinition, 0)

	err := readAll(fr.root, flowsDir, func(body []byte) error {
		var flow models.FlowDefinition

		err := json.Unmarshal(body, &flow)
		if err != nil {
			return err
		}

		flows = append(flows, &flow)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(flows, func(i, j int) bool {
		if flows[i].CreatedAt.Equal(flows[j].CreatedAt) {
			return flows[i].ID < flows[j].ID
		}

		return flows[i].CreatedAt.Before(flows[j].CreatedAt)
	})

	return flows, nil
}

// GetActive returns the flows with isActive set.
func (fr *FlowRepository) GetActive(ctx context.Context) ([]*models.FlowDefinition, error) {
	flows, err := fr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.FlowDefinition, 0, len(flows))

	for _, flow := range flows {
		if flow.IsActive {
			active = append(active, flow)
		}
	}

	return active, nil
}

// GetByID retrieves a flow by its ID from the file system.
func (fr *FlowRepository) GetByID(_ context.Context, id string) (*models.FlowDefinition, error) {
	err := validateID(id)
	if err != nil {
		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	var flow models.FlowDefinition

	err = readRecord(fr.root, flowsDir, id, &flow)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	return &flow, nil
}

// Save saves a flow to the file system.
func (fr *FlowRepository) Save(_ context.Context, flow *models.FlowDefinition) error {
	err := validateID(flow.ID)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	err = writeRecord(fr.root, flowsDir, flow.ID, flow)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// Delete removes a flow by its ID.
func (fr *FlowRepository) Delete(_ context.Context, id string) error {
	err := validateID(id)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	err = removeRecord(fr.root, flowsDir, id)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	return nil
}
