package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/botstudio/internal/models"
)

func ids(items []models.DataSource) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func newSources() *Collection[models.DataSource] {
	return NewCollection[models.DataSource](&Clock{}, nil)
}

func TestCollectionOptimisticCreate(t *testing.T) {
	c := newSources()
	c.Replace([]models.DataSource{{ID: "a"}})

	c.BeginCreate(models.DataSource{ID: "tmp", Status: models.DocumentProcessing})
	assert.Equal(t, []string{"tmp", "a"}, ids(c.List()))

	c.CommitCreate("tmp", models.DataSource{ID: "b", Status: models.DocumentProcessing})
	assert.Equal(t, []string{"b", "a"}, ids(c.List()))

	c.BeginCreate(models.DataSource{ID: "tmp2"})
	c.RollbackCreate("tmp2")
	assert.Equal(t, []string{"b", "a"}, ids(c.List()))
}

func TestCollectionOptimisticDelete(t *testing.T) {
	c := newSources()
	c.Replace([]models.DataSource{{ID: "a"}, {ID: "b"}})

	require.True(t, c.BeginDelete("a"))
	assert.Equal(t, []string{"b"}, ids(c.List()))
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.RollbackDelete("a")
	assert.Equal(t, []string{"a", "b"}, ids(c.List()))

	require.True(t, c.BeginDelete("a"))
	c.CommitDelete("a")
	assert.Equal(t, []string{"b"}, ids(c.List()))
	assert.False(t, c.BeginDelete("missing"))
}

func TestCollectionMergeFollowsServer(t *testing.T) {
	c := newSources()
	c.Replace([]models.DataSource{
		{ID: "1", Status: models.DocumentProcessing},
		{ID: "gone", Status: models.DocumentReady},
	})

	since := c.Snapshot()
	c.Merge([]models.DataSource{
		{ID: "1", Status: models.DocumentReady},
		{ID: "new", Status: models.DocumentReady},
	}, since)

	list := c.List()
	assert.Equal(t, []string{"1", "new"}, ids(list))
	assert.Equal(t, models.DocumentReady, list[0].Status)
}

func TestCollectionMergeKeepsInFlightLocalChanges(t *testing.T) {
	c := newSources()
	c.Replace([]models.DataSource{
		{ID: "1", Status: models.DocumentProcessing},
		{ID: "2", Status: models.DocumentReady},
		{ID: "3", Status: models.DocumentReady},
	})

	// A refresh starts here; the server list it returns predates what follows.
	since := c.Snapshot()

	c.BeginCreate(models.DataSource{ID: "uploading", Status: models.DocumentProcessing})
	require.True(t, c.BeginDelete("2"))
	require.True(t, c.BeginDelete("3"))
	c.CommitDelete("3")

	c.Merge([]models.DataSource{
		{ID: "1", Status: models.DocumentReady},
		{ID: "2", Status: models.DocumentReady},
		{ID: "3", Status: models.DocumentReady},
	}, since)

	assert.Equal(t, []string{"uploading", "1"}, ids(c.List()),
		"pending create survives, pending delete stays hidden, committed delete is not resurrected")

	c.RollbackDelete("2")
	assert.Contains(t, ids(c.List()), "2")
}

func TestCollectionMergeDoesNotClobberNewerLocalUpdate(t *testing.T) {
	c := newSources()
	c.Replace([]models.DataSource{{ID: "1", Name: "old"}})

	since := c.Snapshot()
	c.Upsert(models.DataSource{ID: "1", Name: "renamed"})
	c.Merge([]models.DataSource{{ID: "1", Name: "old"}}, since)

	got, ok := c.Get("1")
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Name)

	// A later refresh that started after the update is authoritative again.
	c.Merge([]models.DataSource{{ID: "1", Name: "server"}}, c.Snapshot())
	got, _ = c.Get("1")
	assert.Equal(t, "server", got.Name)
}

func TestCollectionCommitCreateAfterRefreshBroughtRecord(t *testing.T) {
	c := newSources()
	c.BeginCreate(models.DataSource{ID: "tmp", Status: models.DocumentProcessing})
	c.Merge([]models.DataSource{{ID: "real", Status: models.DocumentProcessing}}, c.Snapshot())
	assert.Equal(t, []string{"tmp", "real"}, ids(c.List()))

	c.CommitCreate("tmp", models.DataSource{ID: "real", Status: models.DocumentProcessing})
	assert.Equal(t, []string{"real"}, ids(c.List()))
}

func TestCollectionReplaceDropsDuplicates(t *testing.T) {
	c := newSources()
	c.Replace([]models.DataSource{{ID: "a"}, {ID: "a"}, {ID: "b"}})
	assert.Equal(t, []string{"a", "b"}, ids(c.List()))
	assert.Equal(t, 2, c.Len())
}
