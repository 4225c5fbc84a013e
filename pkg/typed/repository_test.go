package typed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/alertidx/pkg/core"
	"github.com/aretw0/alertidx/pkg/dao"
	"github.com/aretw0/alertidx/pkg/typed"
)

type Triage struct {
	Status   string         `json:"status"`
	Score    int            `json:"score"`
	Owner    string         `json:"owner,omitempty"`
	Comments []core.Comment `json:"comments,omitempty"`
}

func setupDao(t *testing.T) *dao.Dao {
	t.Helper()
	d := dao.New()
	require.NoError(t, d.EnsureInitialized(context.Background(), dao.AccessConfig{
		Adapter: "memory",
		Indices: map[string]string{"bro": "bro_index"},
	}))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestRepository_SaveAndGet(t *testing.T) {
	d := setupDao(t)
	ctx := context.Background()
	alerts := typed.NewRepository[Triage](d)

	alert := &typed.Alert[Triage]{
		SensorType: "bro",
		Data:       Triage{Status: "NEW", Score: 70},
	}
	require.NoError(t, alerts.Save(ctx, alert))
	require.NotEmpty(t, alert.GUID, "a guid is generated")
	assert.Equal(t, int64(1), alert.Version)
	assert.Equal(t, "bro_index", alert.Index)

	got, err := alerts.Get(ctx, alert.GUID, "bro")
	require.NoError(t, err)
	assert.Equal(t, Triage{Status: "NEW", Score: 70}, got.Data)

	// Active record style through the attached saver.
	got.Data.Owner = "ana"
	require.NoError(t, got.Save(ctx))
	assert.Equal(t, int64(2), got.Version)

	raw, err := d.GetLatest(ctx, alert.GUID, "bro")
	require.NoError(t, err)
	assert.Equal(t, "ana", raw.Fields["owner"])
	assert.Equal(t, float64(70), raw.Fields["score"])
}

func TestRepository_CommentsDecode(t *testing.T) {
	d := setupDao(t)
	ctx := context.Background()
	alerts := typed.NewRepository[Triage](d)

	_, err := d.Update(ctx, core.Document{GUID: "g1", SensorType: "bro", Fields: core.Fields{"status": "NEW"}}, "")
	require.NoError(t, err)
	comment := core.Comment{Author: "ana", Text: "looking", Timestamp: 42}
	_, err = d.AddCommentToAlert(ctx, core.CommentRequest{GUID: "g1", SensorType: "bro", Comment: comment})
	require.NoError(t, err)

	got, err := alerts.Get(ctx, "g1", "bro")
	require.NoError(t, err)
	assert.Equal(t, []core.Comment{comment}, got.Data.Comments)
}

func TestRepository_GetAllAndFind(t *testing.T) {
	d := setupDao(t)
	ctx := context.Background()
	alerts := typed.NewRepository[Triage](d)

	for i, status := range []string{"NEW", "ESCALATE", "NEW"} {
		require.NoError(t, alerts.Save(ctx, &typed.Alert[Triage]{
			GUID:       []string{"a", "b", "c"}[i],
			SensorType: "bro",
			Data:       Triage{Status: status, Score: (i + 1) * 10},
		}))
	}

	all, err := alerts.GetAll(ctx, []core.GetRequest{
		{GUID: "c", SensorType: "bro"},
		{GUID: "missing", SensorType: "bro"},
		{GUID: "a", SensorType: "bro"},
	})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].GUID)
	assert.Equal(t, "a", all[1].GUID)

	found, total, err := alerts.Find(ctx, core.SearchRequest{
		Indices: []string{"bro_index"},
		Query:   `status == "NEW"`,
		Sort:    []core.SortField{{Field: "score", Descending: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, found, 2)
	assert.Equal(t, "c", found[0].GUID)
	assert.Equal(t, "bro", found[0].SensorType)
	assert.Equal(t, 30, found[0].Data.Score)
	assert.Equal(t, "bro_index", found[1].Index)
}

func TestRepository_NotFoundAndDetached(t *testing.T) {
	d := setupDao(t)
	alerts := typed.NewRepository[Triage](d)

	_, err := alerts.Get(context.Background(), "nope", "bro")
	assert.ErrorIs(t, err, core.ErrNotFound)

	detached := &typed.Alert[Triage]{GUID: "x"}
	assert.Error(t, detached.Save(context.Background()))
}

func TestRepository_NonObjectData(t *testing.T) {
	d := setupDao(t)
	alerts := typed.NewRepository[[]string](d)

	err := alerts.Save(context.Background(), &typed.Alert[[]string]{GUID: "x", Data: []string{"a"}})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}
