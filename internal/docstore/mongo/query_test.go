package mongo

import (
	"testing"

	"github.com/koustreak/roubi/internal/docstore"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildFilter_EmptyIsArchiveExclusionOnly(t *testing.T) {
	got := BuildFilter(PageQuery{})
	assert.Equal(t, bson.D{{Key: "status", Value: bson.D{{Key: "$ne", Value: "archived"}}}}, got)
}

func TestBuildFilter_IncludeArchivedMatchesAll(t *testing.T) {
	assert.Equal(t, bson.D{}, BuildFilter(PageQuery{IncludeArchived: true}))
}

func TestBuildFilter_Clauses(t *testing.T) {
	q := PageQuery{
		Params: docstore.MultiFilter{
			Filters: []docstore.Filter{
				{Field: "name", Value: "ali"},
				{Field: "age", Value: 30},
				{Field: "", Value: "ignored"},
				{Field: "nick", Value: ""},
				{Field: "email", Value: nil},
				{Field: "active", Value: false},
				{Field: "retries", Value: 0},
			},
			TimeRange: &docstore.TimeRange{Field: "createdAt", GTE: 100, LTE: 200},
		},
		Extra: bson.D{{Key: "tenant", Value: "acme"}},
	}

	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "ali"}, {Key: "$options", Value: "i"}}}},
		bson.D{{Key: "age", Value: 30}},
		bson.D{{Key: "active", Value: false}},
		bson.D{{Key: "retries", Value: 0}},
		bson.D{{Key: "tenant", Value: "acme"}},
		bson.D{{Key: "status", Value: bson.D{{Key: "$ne", Value: "archived"}}}},
		bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gte", Value: 100}, {Key: "$lte", Value: 200}}}},
	}}}
	assert.Equal(t, want, BuildFilter(q))
}

func TestBuildFilter_TimeRangeWithoutLowerBoundIgnored(t *testing.T) {
	q := PageQuery{
		IncludeArchived: true,
		Params:          docstore.MultiFilter{TimeRange: &docstore.TimeRange{Field: "createdAt", LTE: 5}},
	}
	assert.Equal(t, bson.D{}, BuildFilter(q))
}

func TestFindOptions(t *testing.T) {
	opts := findOptions(PageQuery{Params: docstore.MultiFilter{Page: 3, Size: 20, OrderBy: "createdAt", Order: "ASC"}})
	assert.Equal(t, int64(40), *opts.Skip)
	assert.Equal(t, int64(20), *opts.Limit)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: 1}}, opts.Sort)

	opts = findOptions(PageQuery{Params: docstore.MultiFilter{Size: 5, OrderBy: "createdAt"}})
	assert.Nil(t, opts.Skip)
	assert.Equal(t, int64(5), *opts.Limit)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, opts.Sort)
}

func TestUniqueFilter(t *testing.T) {
	f, ok := uniqueFilter(bson.M{"email": "a@x.io", "name": "a"}, []string{"email", "phone"})
	assert.True(t, ok)
	assert.Equal(t, bson.D{{Key: "$or", Value: bson.A{bson.D{{Key: "email", Value: "a@x.io"}}}}}, f)

	_, ok = uniqueFilter(bson.M{"name": "a"}, []string{"email"})
	assert.False(t, ok)
}
