package mongo

import (
	"github.com/koustreak/roubi/internal/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageQuery is the input of FindPaginated.
type PageQuery struct {
	Params docstore.MultiFilter

	// Extra is merged into the conjunction as a single clause.
	Extra bson.D

	// Projection selects the returned fields; nil returns whole documents.
	Projection any

	// IncludeArchived disables the status != archived clause.
	IncludeArchived bool
}

// BuildFilter composes the query document for q:
//
//   - one clause per filter with a field and a non-empty value: strings as a
//     case-insensitive $regex, anything else as equality;
//   - the Extra document, as-is;
//   - status != archived, unless IncludeArchived;
//   - field in [GTE, LTE] when a time range with a lower bound is given.
//
// Zero clauses yield the empty (match-all) document, a single clause is
// returned bare, and several are joined under $and.
func BuildFilter(q PageQuery) bson.D {
	var clauses bson.A

	for _, f := range q.Params.Filters {
		if f.Field == "" || isBlank(f.Value) {
			continue
		}
		if s, ok := f.Value.(string); ok {
			clauses = append(clauses, bson.D{{Key: f.Field, Value: bson.D{
				{Key: "$regex", Value: s},
				{Key: "$options", Value: "i"},
			}}})
			continue
		}
		clauses = append(clauses, bson.D{{Key: f.Field, Value: f.Value}})
	}

	if len(q.Extra) > 0 {
		clauses = append(clauses, q.Extra)
	}

	if !q.IncludeArchived {
		clauses = append(clauses, archiveExclusion())
	}

	if tr := q.Params.TimeRange; tr != nil && tr.Field != "" && tr.GTE != nil {
		clauses = append(clauses, bson.D{{Key: tr.Field, Value: bson.D{
			{Key: "$gte", Value: tr.GTE},
			{Key: "$lte", Value: tr.LTE},
		}}})
	}

	switch len(clauses) {
	case 0:
		return bson.D{}
	case 1:
		return clauses[0].(bson.D)
	default:
		return bson.D{{Key: "$and", Value: clauses}}
	}
}

func archiveExclusion() bson.D {
	return bson.D{{Key: docstore.StatusField, Value: bson.D{{Key: "$ne", Value: docstore.StatusArchived}}}}
}

// isBlank reports a filter value with nothing to match on. Zero numbers and
// false are real values and still filter.
func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	}
	return false
}

// findOptions builds sort/skip/limit for one page. Each page is capped at
// Size records.
func findOptions(q PageQuery) *options.FindOptions {
	p := q.Params
	opts := options.Find().SetLimit(int64(p.Size))
	if q.Projection != nil {
		opts.SetProjection(q.Projection)
	}
	if p.OrderBy != "" {
		dir := -1
		if p.Order == docstore.OrderAsc {
			dir = 1
		}
		opts.SetSort(bson.D{{Key: p.OrderBy, Value: dir}})
	}
	if p.Page > 0 {
		opts.SetSkip(docstore.Skip(p.Page, p.Size))
	}
	return opts
}

// uniqueFilter is the $or of equality clauses for the unique keys present in
// doc. ok is false when none of the keys are present.
func uniqueFilter(doc bson.M, keys []string) (bson.D, bool) {
	var or bson.A
	for _, k := range keys {
		if v, present := doc[k]; present {
			or = append(or, bson.D{{Key: k, Value: v}})
		}
	}
	if len(or) == 0 {
		return nil, false
	}
	return bson.D{{Key: "$or", Value: or}}, true
}
