// Package mongo is the MongoDB sink. Each row becomes one document keyed by
// the configured columns; keyed deletes become DeleteMany filters sent as a
// single ordered bulk write.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"rowcore/internal/storage"
)

// ErrExecUnsupported is returned by Exec; MongoDB has no SQL surface.
var ErrExecUnsupported = errors.New("mongo: Exec is not supported")

// Config holds MongoDB repository configuration.
type Config struct {
	DSN     string   // mongodb:// or mongodb+srv:// URI
	Table   string   // "collection" or "database.collection"
	Columns []string // document field names
}

// Repository writes rows into one collection.
type Repository struct {
	client *mongo.Client
	dbName string
	coll   *mongo.Collection
	cfg    Config
}

// NewRepository connects, pings and resolves the target collection.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	defaultDB, err := uriDatabase(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	dbName, collName, err := namespace(cfg.Table, defaultDB)
	if err != nil {
		return nil, nil, err
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	r := &Repository{
		client: client,
		dbName: dbName,
		coll:   client.Database(dbName).Collection(collName),
		cfg:    cfg,
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}
	return r, closeFn, nil
}

// uriDatabase returns the database named in the URI path, if any.
func uriDatabase(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("mongo uri: %w", err)
	}
	return strings.Trim(u.Path, "/"), nil
}

// namespace splits table into database and collection. Without a database
// prefix defaultDB is used.
func namespace(table, defaultDB string) (string, string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", "", fmt.Errorf("mongo: collection must not be empty")
	}
	if db, coll, ok := strings.Cut(table, "."); ok && db != "" && coll != "" {
		return db, coll, nil
	}
	if defaultDB == "" {
		return "", "", fmt.Errorf("mongo: no database in %q or in the URI path", table)
	}
	return defaultDB, table, nil
}

// CopyFrom inserts one document per row.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	docs := make([]any, len(rows))
	for i, row := range rows {
		doc, err := document(columns, row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		docs[i] = doc
	}
	res, err := r.coll.InsertMany(ctx, docs)
	if err != nil {
		var n int64
		if res != nil {
			n = int64(len(res.InsertedIDs))
		}
		return n, fmt.Errorf("insert many: %w", err)
	}
	return int64(len(res.InsertedIDs)), nil
}

// DeleteRows sends one DeleteMany per row in an ordered bulk write and
// returns the total removed. Writes before a failing model stay applied.
func (r *Repository) DeleteRows(ctx context.Context, plan storage.DeletePlan, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	coll := r.coll
	if plan.Table != "" {
		db, name, err := namespace(plan.Table, r.dbName)
		if err != nil {
			return 0, err
		}
		coll = r.client.Database(db).Collection(name)
	}

	models := make([]mongo.WriteModel, len(rows))
	for i, row := range rows {
		f, err := filter(plan, row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		models[i] = mongo.NewDeleteManyModel().SetFilter(f)
	}
	res, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("bulk delete: %w", err)
	}
	return res.DeletedCount, nil
}

// Exec always fails.
func (r *Repository) Exec(context.Context, string) error { return ErrExecUnsupported }

// ensureCollection creates the collection, treating an existing one as success.
func (r *Repository) ensureCollection(ctx context.Context) error {
	err := r.client.Database(r.dbName).CreateCollection(ctx, r.coll.Name())
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Name == "NamespaceExists" {
		return nil
	}
	return err
}

func document(columns []string, row []any) (bson.D, error) {
	if len(row) != len(columns) {
		return nil, fmt.Errorf("%d values for %d columns", len(row), len(columns))
	}
	doc := make(bson.D, len(columns))
	for i, c := range columns {
		v, err := value(row[i])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", c, err)
		}
		doc[i] = bson.E{Key: c, Value: v}
	}
	return doc, nil
}

// value maps row values onto BSON types. Decimals become Decimal128.
func value(v any) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return bson.ParseDecimal128(x.String())
	case time.Time:
		return x.UTC(), nil
	}
	return v, nil
}

// filter builds the document filter of plan for one row.
func filter(plan storage.DeletePlan, row []any) (bson.D, error) {
	args := plan.Args(row)
	clauses := make(bson.A, 0, len(plan.Keys))
	n := 0
	next := func() (any, error) {
		v, err := value(args[n])
		n++
		return v, err
	}
	for _, k := range plan.Keys {
		var cond any
		switch k.Condition {
		case "IS NULL":
			cond = nil
		case "IS NOT NULL":
			cond = bson.D{{Key: "$ne", Value: nil}}
		case "BETWEEN":
			lo, err := next()
			if err != nil {
				return nil, err
			}
			hi, err := next()
			if err != nil {
				return nil, err
			}
			cond = bson.D{{Key: "$gte", Value: lo}, {Key: "$lte", Value: hi}}
		default:
			v, err := next()
			if err != nil {
				return nil, err
			}
			if cond, err = compare(k.Condition, v); err != nil {
				return nil, err
			}
		}
		clauses = append(clauses, bson.D{{Key: k.Lookup, Value: cond}})
	}
	if len(clauses) == 1 {
		return clauses[0].(bson.D), nil
	}
	return bson.D{{Key: "$and", Value: clauses}}, nil
}

var operators = map[string]string{
	"=":  "$eq",
	"<>": "$ne",
	"<":  "$lt",
	"<=": "$lte",
	">":  "$gt",
	">=": "$gte",
}

func compare(cond string, v any) (any, error) {
	if op, ok := operators[cond]; ok {
		return bson.D{{Key: op, Value: v}}, nil
	}
	if cond == "LIKE" {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("LIKE needs a string, got %T", v)
		}
		return bson.D{{Key: "$regex", Value: likePattern(s)}}, nil
	}
	return nil, fmt.Errorf("unsupported condition %q", cond)
}

// likePattern turns a SQL LIKE pattern into an anchored regular expression.
func likePattern(s string) string {
	var sb strings.Builder
	sb.WriteByte('^')
	for _, r := range s {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteByte('$')
	return sb.String()
}
