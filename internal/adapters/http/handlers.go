package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/osmqa/internal/core/domain"
)

// language picks ?lang= over the Accept-Language header.
func language(c *fiber.Ctx) string {
	if lang := c.Query("lang"); lang != "" {
		return lang
	}
	return c.Get(fiber.HeaderAcceptLanguage, "en")
}

// ListRulesHandler returns every rule with its translated title.
func ListRulesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Vary(fiber.HeaderAcceptLanguage)
		return c.JSON(deps.Rules.List(language(c)))
	}
}

// GetRuleHandler returns one rule by class.
func GetRuleHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		class, err := c.ParamsInt("class")
		if err != nil {
			return errBadRequest(c, "class must be an integer")
		}
		rule, err := deps.Rules.Get(language(c), class)
		if err != nil {
			return errNotFound(c, err.Error())
		}
		c.Vary(fiber.HeaderAcceptLanguage)
		return c.JSON(rule)
	}
}

// ListIssuesHandler returns a page of issues filtered by class and run.
func ListIssuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		class := c.QueryInt("class", 0)
		if class < 0 {
			return errBadRequest(c, "class must not be negative")
		}
		runID := c.Query("run_id")

		page, err := deps.Issues.List(c.UserContext(), domain.IssueFilter{
			Class:  class,
			RunID:  runID,
			Offset: c.QueryInt("offset", 0),
			Limit:  c.QueryInt("limit", 0),
		})
		if err != nil {
			return errFromDomain(c, err)
		}

		filters := url.Values{}
		if class > 0 {
			filters.Set("class", strconv.Itoa(class))
		}
		if runID != "" {
			filters.Set("run_id", runID)
		}
		pg := Pagination{Offset: page.Offset, Limit: page.Limit, Total: page.Total}
		SetLinkHeaders(c, pg, filters)
		return c.JSON(PaginatedResponse{Data: page.Issues, Pagination: pg})
	}
}

// GetIssueHandler returns a single issue.
func GetIssueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		issue, err := deps.Issues.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(issue)
	}
}

// EvaluateHandler scores a GeoJSON LineString (bare geometry or Feature)
// posted in WGS 84. With ?format=geojson the answer is a FeatureCollection
// of the interior vertices.
func EvaluateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ls, err := parseLineString(c.Body())
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		ev, err := deps.Evaluate.Evaluate(c.UserContext(), ls)
		if err != nil {
			return errFromDomain(c, err)
		}

		if c.Query("format") == "geojson" {
			fc := geojson.NewFeatureCollection()
			for _, v := range ev.Vertices {
				f := geojson.NewFeature(v.Position.Orb())
				f.Properties["index"] = v.Index
				f.Properties["score"] = v.Score
				f.Properties["flagged"] = v.Flagged
				fc.Append(f)
			}
			fc.ExtraMembers = geojson.Properties{"max_score": ev.MaxScore, "threshold": ev.Threshold}
			data, err := fc.MarshalJSON()
			if err != nil {
				return errInternal(c, err)
			}
			c.Set(fiber.HeaderContentType, "application/geo+json")
			return c.Send(data)
		}
		return c.JSON(ev)
	}
}

type geojsonProbe struct {
	Type string `json:"type"`
}

func parseLineString(body []byte) (orb.LineString, error) {
	if len(body) == 0 {
		return nil, errors.New("request body is required")
	}
	var probe geojsonProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var g orb.Geometry
	switch probe.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(body)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON feature: %w", err)
		}
		g = f.Geometry
	case "LineString":
		geom, err := geojson.UnmarshalGeometry(body)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
		}
		g = geom.Geometry()
	default:
		return nil, fmt.Errorf("expected a GeoJSON LineString or Feature, got %q", probe.Type)
	}

	ls, ok := g.(orb.LineString)
	if !ok {
		return nil, errors.New("geometry must be a LineString")
	}
	return ls, nil
}

// runRequestBody is the payload of POST /v1/runs.
type runRequestBody struct {
	Mode    string `json:"mode"`
	Classes []int  `json:"classes"`
}

// CreateRunHandler queues an analysis run for the worker.
func CreateRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body runRequestBody
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		req, err := deps.Runs.Request(c.UserContext(), body.Mode, body.Classes)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Location("/v1/runs/" + req.ID)
		return c.Status(fiber.StatusAccepted).JSON(req)
	}
}

// GetRunHandler returns a single run.
func GetRunHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		run, err := deps.Runs.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(run)
	}
}

// ListRunsHandler returns the most recent runs.
func ListRunsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		runs, err := deps.Runs.List(c.UserContext(), c.QueryInt("limit", 20))
		if err != nil {
			return errFromDomain(c, err)
		}
		if runs == nil {
			runs = []domain.Run{}
		}
		return c.JSON(runs)
	}
}
