package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/osmqa/internal/core/domain"
	"github.com/samirrijal/osmqa/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	ruleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Rule",
		Fields: graphql.Fields{
			"class":         &graphql.Field{Type: graphql.Int},
			"key":           &graphql.Field{Type: graphql.String},
			"values":        &graphql.Field{Type: graphql.NewList(graphql.String)},
			"exclude_water": &graphql.Field{Type: graphql.Boolean},
			"title":         &graphql.Field{Type: graphql.String},
			"item":          &graphql.Field{Type: graphql.Int},
			"level":         &graphql.Field{Type: graphql.Int},
			"tags":          &graphql.Field{Type: graphql.NewList(graphql.String)},
			"detail":        &graphql.Field{Type: graphql.String},
			"fix":           &graphql.Field{Type: graphql.String},
			"trap":          &graphql.Field{Type: graphql.String},
		},
	})

	issueType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Issue",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"run_id":     &graphql.Field{Type: graphql.String},
			"class":      &graphql.Field{Type: graphql.Int},
			"subclass":   &graphql.Field{Type: graphql.Int},
			"way_id":     &graphql.Field{Type: graphql.Float},
			"vertex":     &graphql.Field{Type: graphql.Int},
			"position":   &graphql.Field{Type: geoPointType},
			"tag_value":  &graphql.Field{Type: graphql.String},
			"deviation":  &graphql.Field{Type: graphql.Float},
			"text":       &graphql.Field{Type: graphql.String},
			"created_at": &graphql.Field{Type: graphql.String},
		},
	})

	issuePageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "IssuePage",
		Fields: graphql.Fields{
			"issues": &graphql.Field{Type: graphql.NewList(issueType)},
			"total":  &graphql.Field{Type: graphql.Int},
			"offset": &graphql.Field{Type: graphql.Int},
			"limit":  &graphql.Field{Type: graphql.Int},
		},
	})

	runType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Run",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"mode":         &graphql.Field{Type: graphql.String},
			"classes":      &graphql.Field{Type: graphql.NewList(graphql.Int)},
			"status":       &graphql.Field{Type: graphql.String},
			"ways_scanned": &graphql.Field{Type: graphql.Int},
			"issues_found": &graphql.Field{Type: graphql.Int},
			"error":        &graphql.Field{Type: graphql.String},
			"started_at":   &graphql.Field{Type: graphql.String},
			"finished_at":  &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"rules": &graphql.Field{
				Type:        graphql.NewList(ruleType),
				Description: "Rules of the approximate-geometry analyser",
				Args: graphql.FieldConfigArgument{
					"lang": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "en"},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					views := deps.Rules.List(p.Args["lang"].(string))
					out := make([]map[string]interface{}, len(views))
					for i, v := range views {
						out[i] = ruleMap(v)
					}
					return out, nil
				},
			},
			"issues": &graphql.Field{
				Type:        issuePageType,
				Description: "Page through stored issues",
				Args: graphql.FieldConfigArgument{
					"class":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"run_id": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					page, err := deps.Issues.List(p.Context, domain.IssueFilter{
						Class:  p.Args["class"].(int),
						RunID:  p.Args["run_id"].(string),
						Offset: p.Args["offset"].(int),
						Limit:  p.Args["limit"].(int),
					})
					if err != nil {
						return nil, err
					}
					issues := make([]map[string]interface{}, len(page.Issues))
					for i, is := range page.Issues {
						issues[i] = issueMap(&is)
					}
					return map[string]interface{}{
						"issues": issues,
						"total":  page.Total,
						"offset": page.Offset,
						"limit":  page.Limit,
					}, nil
				},
			},
			"issue": &graphql.Field{
				Type:        issueType,
				Description: "Get an issue by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					is, err := deps.Issues.GetByID(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return issueMap(is), nil
				},
			},
			"runs": &graphql.Field{
				Type:        graphql.NewList(runType),
				Description: "Most recent analysis runs",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					runs, err := deps.Runs.List(p.Context, p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(runs))
					for i := range runs {
						out[i] = runMap(&runs[i])
					}
					return out, nil
				},
			},
			"run": &graphql.Field{
				Type:        runType,
				Description: "Get a run by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					run, err := deps.Runs.Get(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return runMap(run), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"requestRun": &graphql.Field{
				Type:        graphql.String,
				Description: "Queue an analysis run and return its id",
				Args: graphql.FieldConfigArgument{
					"mode":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "full"},
					"classes": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var classes []int
					if raw, ok := p.Args["classes"].([]interface{}); ok {
						for _, c := range raw {
							if v, ok := c.(int); ok {
								classes = append(classes, v)
							}
						}
					}
					req, err := deps.Runs.Request(p.Context, p.Args["mode"].(string), classes)
					if err != nil {
						return nil, err
					}
					return req.ID, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func ruleMap(v usecases.RuleView) map[string]interface{} {
	return map[string]interface{}{
		"class":         v.Class,
		"key":           v.Key,
		"values":        v.Values,
		"exclude_water": v.ExcludeWater,
		"title":         v.Title,
		"item":          v.Meta.Item,
		"level":         v.Meta.Level,
		"tags":          v.Meta.Tags,
		"detail":        v.Meta.Detail,
		"fix":           v.Meta.Fix,
		"trap":          v.Meta.Trap,
	}
}

// issueMap flattens an issue for graphql-go, whose scalars do not coerce
// named types such as osm.WayID.
func issueMap(is *domain.Issue) map[string]interface{} {
	return map[string]interface{}{
		"id":         is.ID,
		"run_id":     is.RunID,
		"class":      is.Class,
		"subclass":   is.Subclass,
		"way_id":     float64(is.WayID),
		"vertex":     is.Vertex,
		"position":   map[string]interface{}{"lat": is.Position.Lat, "lon": is.Position.Lon},
		"tag_value":  is.TagValue,
		"deviation":  is.Deviation,
		"text":       is.Text,
		"created_at": is.CreatedAt.Format(time.RFC3339),
	}
}

func runMap(r *domain.Run) map[string]interface{} {
	m := map[string]interface{}{
		"id":           r.ID,
		"mode":         string(r.Mode),
		"classes":      r.Classes,
		"status":       string(r.Status),
		"ways_scanned": r.WaysScanned,
		"issues_found": r.IssuesFound,
		"error":        r.Error,
		"started_at":   r.StartedAt.Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		m["finished_at"] = r.FinishedAt.Format(time.RFC3339)
	}
	return m
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
