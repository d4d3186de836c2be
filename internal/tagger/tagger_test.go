package tagger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirelo/sdsort/internal/config/server"
	"github.com/mirelo/sdsort/pkg/db/models"
	"github.com/mirelo/sdsort/pkg/db/store"
	"github.com/mirelo/sdsort/pkg/log"
)

// fakeTagger returns canned scores keyed by file path.
type fakeTagger struct {
	scores map[string][]Score
}

func (f *fakeTagger) Tag(_ context.Context, path string) ([]Score, error) {
	scores, ok := f.scores[path]
	if !ok {
		return nil, fmt.Errorf("no scores for %s", path)
	}
	return scores, nil
}

func newTestRunner(t *testing.T, fake *fakeTagger) (*Runner, store.ImageStore) {
	t.Helper()

	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	logger := log.NewLoggerService("test", server.LogServerConfig{
		Level:      "ERROR",
		TimeFormat: "15:04:05",
		NoColor:    true,
	})

	factory := func(Settings) (Tagger, error) { return fake, nil }
	return NewRunner(s, factory, logger), s
}

func TestExclusiveRatings(t *testing.T) {
	scores := []Score{
		{Tag: "1girl", Confidence: 0.95},
		{Tag: "general", Confidence: 0.4},
		{Tag: "explicit", Confidence: 0.7},
		{Tag: "solo", Confidence: 0.9},
	}

	result := ExclusiveRatings(scores, models.IsRatingTag)

	tags := make([]string, 0, len(result))
	for _, score := range result {
		tags = append(tags, score.Tag)
	}
	assert.Equal(t, []string{"1girl", "explicit", "solo"}, tags)
}

func TestExclusiveRatingsNoRatings(t *testing.T) {
	scores := []Score{{Tag: "1girl", Confidence: 0.9}}
	assert.Equal(t, scores, ExclusiveRatings(scores, models.IsRatingTag))
}

func TestTagImagesUntaggedOnly(t *testing.T) {
	fake := &fakeTagger{scores: map[string][]Score{
		"/img/b.png": {{Tag: "1girl", Confidence: 0.9}, {Tag: "general", Confidence: 0.8}},
	}}
	runner, s := newTestRunner(t, fake)
	ctx := context.Background()

	tagged := models.Image{Path: "/img/a.png", Filename: "a.png"}
	require.NoError(t, s.UpsertImage(ctx, &tagged))
	require.NoError(t, s.ReplaceTags(ctx, tagged.ID, []models.Tag{{Tag: "solo"}}))

	untagged := models.Image{Path: "/img/b.png", Filename: "b.png"}
	require.NoError(t, s.UpsertImage(ctx, &untagged))

	result, err := runner.TagImages(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total, "already tagged images are skipped by default")
	assert.Equal(t, 1, result.Tagged)

	tags, err := s.GetImageTags(ctx, untagged.ID)
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func TestTagImagesErrorsAreCounted(t *testing.T) {
	fake := &fakeTagger{scores: map[string][]Score{}}
	runner, s := newTestRunner(t, fake)
	ctx := context.Background()

	img := models.Image{Path: "/img/a.png", Filename: "a.png"}
	require.NoError(t, s.UpsertImage(ctx, &img))

	result, err := runner.TagImages(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 0, result.Tagged)
}

func TestTagImagesEnforcesRatingExclusivity(t *testing.T) {
	fake := &fakeTagger{scores: map[string][]Score{
		"/img/a.png": {
			{Tag: "general", Confidence: 0.6},
			{Tag: "sensitive", Confidence: 0.8},
			{Tag: "1girl", Confidence: 0.9},
		},
	}}
	runner, s := newTestRunner(t, fake)
	ctx := context.Background()

	img := models.Image{Path: "/img/a.png", Filename: "a.png"}
	require.NoError(t, s.UpsertImage(ctx, &img))

	_, err := runner.TagImages(ctx, nil, Options{})
	require.NoError(t, err)

	tags, err := s.GetImageTags(ctx, img.ID)
	require.NoError(t, err)

	ratings := []string{}
	for _, tag := range tags {
		if models.IsRatingTag(tag.Tag) {
			ratings = append(ratings, tag.Tag)
		}
	}
	assert.Equal(t, []string{"sensitive"}, ratings)
}

func TestTagImagesByID(t *testing.T) {
	fake := &fakeTagger{scores: map[string][]Score{
		"/img/a.png": {{Tag: "solo", Confidence: 0.9}},
	}}
	runner, s := newTestRunner(t, fake)
	ctx := context.Background()

	a := models.Image{Path: "/img/a.png", Filename: "a.png"}
	require.NoError(t, s.UpsertImage(ctx, &a))
	b := models.Image{Path: "/img/b.png", Filename: "b.png"}
	require.NoError(t, s.UpsertImage(ctx, &b))

	result, err := runner.TagImages(ctx, nil, Options{IDs: []uint{a.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Tagged)
}

func TestDisabledFactory(t *testing.T) {
	_, err := DisabledFactory(Settings{})
	assert.Error(t, err)
}

func TestSettingsKey(t *testing.T) {
	a := Settings{ModelName: "wd14", Threshold: 0.35}
	b := Settings{ModelName: "wd14", Threshold: 0.5}
	c := Settings{ModelName: "wd14-large"}

	assert.Equal(t, a.Key(), b.Key(), "threshold changes do not rebuild the backend")
	assert.NotEqual(t, a.Key(), c.Key())
}
