package leads

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

func sampleLead(id, operatorID, name string) *models.Lead {
	return &models.Lead{
		ID:         id,
		OperatorID: operatorID,
		Name:       name,
		Email:      strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Phone:      "11999998888",
		PlanID:     "1t_semestral",
		PlanName:   "Semestral (1 Tela)",
		Value:      149.90,
		Source:     "Instagram",
		EventID:    "evt_" + id,
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.True(t, strings.HasPrefix(a, "lead_"))
	assert.NotEqual(t, a, b)
}

func TestMemory_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	lead := sampleLead("lead_1", "op-1", "Maria Souza")
	require.NoError(t, m.Save(ctx, lead))
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.False(t, lead.CreatedAt.IsZero())

	got, err := m.Get(ctx, "op-1", "lead_1")
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", got.Name)

	_, err = m.Get(ctx, "op-2", "lead_1")
	assert.ErrorIs(t, err, ErrNotFound, "other operators cannot see the lead")

	assert.ErrorIs(t, m.Save(ctx, sampleLead("lead_1", "op-1", "Dup")), ErrDuplicate)
	dupEvent := sampleLead("lead_2", "op-1", "Other")
	dupEvent.EventID = lead.EventID
	assert.ErrorIs(t, m.Save(ctx, dupEvent), ErrDuplicate)
}

func TestMemory_List(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	require.NoError(t, m.Save(ctx, sampleLead("lead_a", "op-1", "Maria Souza")))
	require.NoError(t, m.Save(ctx, sampleLead("lead_b", "op-1", "João Lima")))
	require.NoError(t, m.Save(ctx, sampleLead("lead_c", "op-2", "Ana Costa")))
	_, err := m.UpdateStatus(ctx, "op-1", "lead_a", models.LeadStatusConverted)
	require.NoError(t, err)

	tests := []struct {
		name      string
		filter    models.LeadFilter
		wantIDs   []string
		wantTotal int
	}{
		{"operator newest first", models.LeadFilter{OperatorID: "op-1"}, []string{"lead_b", "lead_a"}, 2},
		{"all operators", models.LeadFilter{}, []string{"lead_c", "lead_b", "lead_a"}, 3},
		{"by status", models.LeadFilter{OperatorID: "op-1", Status: models.LeadStatusConverted}, []string{"lead_a"}, 1},
		{"search name case-insensitive", models.LeadFilter{Search: "MARIA"}, []string{"lead_a"}, 1},
		{"search phone", models.LeadFilter{OperatorID: "op-2", Search: "99999"}, []string{"lead_c"}, 1},
		{"paged", models.LeadFilter{Limit: 1, Offset: 1}, []string{"lead_b"}, 3},
		{"past the end", models.LeadFilter{Offset: 10}, []string{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := m.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, l := range got {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestMemory_UpdateStatusAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Save(ctx, sampleLead("lead_1", "op-1", "Maria Souza")))

	_, err := m.UpdateStatus(ctx, "op-1", "lead_1", models.LeadStatus("Pendente"))
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := m.UpdateStatus(ctx, "op-1", "lead_1", models.LeadStatusContacted)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusContacted, updated.Status)

	_, err = m.UpdateStatus(ctx, "op-2", "lead_1", models.LeadStatusConverted)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, m.Delete(ctx, "op-2", "lead_1"), ErrNotFound)
	require.NoError(t, m.Delete(ctx, "op-1", "lead_1"))
	_, err = m.Get(ctx, "", "lead_1")
	assert.ErrorIs(t, err, ErrNotFound)
}
