package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Doer is the part of a go-redis client used to send FalkorDB commands.
// redis.UniversalClient satisfies it.
type Doer interface {
	Do(ctx context.Context, args ...any) *redis.Cmd
}

// Graph sends Cypher to one named FalkorDB graph.
type Graph struct {
	Name string
	Conn Doer
}

// NewGraph creates a new graph handle.
func NewGraph(name string, conn Doer) Graph {
	return Graph{Name: name, Conn: conn}
}

// QueryResult represents the results of a query.
type QueryResult struct {
	Header     []string
	Results    [][]any
	Statistics []string
}

// Query executes a query against the graph. Parameters are sent with the
// CYPHER prefix so values never need splicing into the query text.
func (g *Graph) Query(ctx context.Context, q string, params map[string]any) (QueryResult, error) {
	qr := QueryResult{}

	res, err := g.Conn.Do(ctx, "GRAPH.QUERY", g.Name, withParams(q, params)).Result()
	if err != nil {
		return qr, err
	}

	r, ok := res.([]any)
	if !ok {
		return qr, fmt.Errorf("unexpected response type: %T", res)
	}

	switch len(r) {
	case 3:
		qr.Header = toStrings(r[0])
		qr.Results = toRows(r[1])
		qr.Statistics = toStrings(r[2])
	case 1:
		// write-only queries return statistics alone
		qr.Statistics = toStrings(r[0])
	default:
		return qr, fmt.Errorf("unexpected response length: %d", len(r))
	}

	return qr, nil
}

// Constraint creates a unique constraint on label.property. FalkorDB needs a
// matching exact-match index first, so one is created beforehand.
func (g *Graph) Constraint(ctx context.Context, label, property string) error {
	idx := fmt.Sprintf("CREATE INDEX FOR (n:%s) ON (n.%s)", label, property)
	if _, err := g.Query(ctx, idx, nil); err != nil && !alreadyExists(err) {
		return fmt.Errorf("index %s.%s: %w", label, property, err)
	}
	err := g.Conn.Do(ctx, "GRAPH.CONSTRAINT", "CREATE", g.Name, "UNIQUE", "NODE", label, "PROPERTIES", 1, property).Err()
	if err != nil && !alreadyExists(err) {
		return fmt.Errorf("constraint %s.%s: %w", label, property, err)
	}
	return nil
}

// Delete removes the whole graph. Deleting a graph that does not exist is
// not an error.
func (g *Graph) Delete(ctx context.Context) error {
	err := g.Conn.Do(ctx, "GRAPH.DELETE", g.Name).Err()
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "empty key") {
		return err
	}
	return nil
}

func alreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already indexed") || strings.Contains(msg, "already exists")
}

func toStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		// compact headers are [type, name] pairs
		if pair, ok := item.([]any); ok && len(pair) == 2 {
			item = pair[1]
		}
		out[i] = asString(item)
	}
	return out
}

func toRows(v any) [][]any {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		if vals, ok := row.([]any); ok {
			out = append(out, vals)
		}
	}
	return out
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// asFloat accepts the shapes a double takes across RESP2 and RESP3 replies.
func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}

// withParams prefixes q with "CYPHER k=v ..." in sorted key order.
func withParams(q string, params map[string]any) string {
	if len(params) == 0 {
		return q
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("CYPHER")
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(cypherValue(params[k]))
	}
	b.WriteByte(' ')
	b.WriteString(q)
	return b.String()
}

// cypherValue renders v as a Cypher literal.
func cypherValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return quoteString(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	case []float32:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = formatFloat(float64(f), 32)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = quoteString(s)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = cypherValue(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + cypherValue(x[k])
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return quoteString(fmt.Sprint(x))
	}
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func quoteString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}
