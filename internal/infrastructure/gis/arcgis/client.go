package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/zoning-feasibility/internal/core/domain"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/resilience"
)

const wgs84 = "4326"

var (
	parcelOutFields       = "OBJECTID,ParID,APN,Owner,PropAddr,PropHouse,PropStreet,PropCity,PropState,PropZip,Acres,DeededAcreage,STANPAR,LUCode,LUDesc"
	floodOutFields        = "FloodZone,ZoneDescription,AdoptedDate,OBJECTID"
	districtCodeFields    = []string{"ZONE_DESC", "ZONING", "ZONE_CODE", "ZONE"}
	errGeocodeNoCandidate = errors.New("no geocoder candidate")
)

// Endpoints are ArcGIS REST service URLs. Layer URLs end with the layer id.
type Endpoints struct {
	Geocoder     string
	Parcels      string
	BaseZoning   string
	Overlays     string
	FloodHazards string
}

// Client implements the GIS lookups over the ArcGIS REST query API.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(endpoints Endpoints, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		endpoints:  trimEndpoints(endpoints),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) Geocode(ctx context.Context, address string) (domain.Location, error) {
	params := url.Values{
		"f":            {"json"},
		"SingleLine":   {address},
		"outFields":    {"Match_addr,Addr_type,Score"},
		"maxLocations": {"1"},
		"outSR":        {wgs84},
	}

	var resp struct {
		Candidates []struct {
			Address  string  `json:"address"`
			Score    float64 `json:"score"`
			Location struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"location"`
		} `json:"candidates"`
	}
	if err := c.call(ctx, "geocode", http.MethodGet, c.endpoints.Geocoder+"/findAddressCandidates", params, &resp); err != nil {
		return domain.Location{}, err
	}
	if len(resp.Candidates) == 0 {
		return domain.Location{}, domain.WrapError(domain.ErrNotFound, "geocode", fmt.Errorf("%w for %q", errGeocodeNoCandidate, address))
	}

	candidate := resp.Candidates[0]
	return domain.Location{
		MatchAddress: candidate.Address,
		Score:        candidate.Score,
		Coordinates:  domain.Coordinates{Lon: candidate.Location.X, Lat: candidate.Location.Y},
	}, nil
}

func (c *Client) ParcelAt(ctx context.Context, point domain.Coordinates) (domain.Feature, error) {
	params := pointQuery(point)
	params.Set("outFields", parcelOutFields)
	params.Set("returnGeometry", "true")
	params.Set("outSR", wgs84)

	features, err := c.query(ctx, "parcel", http.MethodGet, c.endpoints.Parcels, params)
	if err != nil {
		return domain.Feature{}, err
	}
	if len(features) == 0 {
		return domain.Feature{}, domain.WrapError(domain.ErrNotFound, "parcel at point", fmt.Errorf("no parcel at %v,%v", point.Lon, point.Lat))
	}
	return features[0], nil
}

func (c *Client) ZoningAt(ctx context.Context, point domain.Coordinates) (domain.ZoningDistrict, error) {
	params := pointQuery(point)
	params.Set("outFields", "*")
	params.Set("returnGeometry", "false")

	features, err := c.query(ctx, "base zoning", http.MethodGet, c.endpoints.BaseZoning, params)
	if err != nil {
		return domain.ZoningDistrict{}, err
	}
	if len(features) == 0 {
		return domain.ZoningDistrict{}, domain.WrapError(domain.ErrNotFound, "zoning at point", errors.New("no base zoning feature"))
	}

	attrs := features[0].Attributes
	code, _ := domain.FirstAttribute(attrs, districtCodeFields...)
	return domain.ZoningDistrict{Code: code, Attributes: attrs}, nil
}

func (c *Client) Overlays(ctx context.Context, parcel domain.Feature) ([]map[string]any, error) {
	return c.intersect(ctx, "overlays", c.endpoints.Overlays, parcel, "*")
}

func (c *Client) FloodHazards(ctx context.Context, parcel domain.Feature) ([]map[string]any, error) {
	return c.intersect(ctx, "flood hazards", c.endpoints.FloodHazards, parcel, floodOutFields)
}

// intersect returns the attributes of layer features that intersect the
// parcel polygon. A parcel without geometry intersects nothing.
func (c *Client) intersect(ctx context.Context, operation, layerURL string, parcel domain.Feature, outFields string) ([]map[string]any, error) {
	if len(parcel.Rings) == 0 {
		return []map[string]any{}, nil
	}

	geometry, err := json.Marshal(map[string]any{
		"rings":            parcel.Rings,
		"spatialReference": map[string]any{"wkid": 4326},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal parcel geometry: %w", err)
	}
	params := url.Values{
		"f":              {"json"},
		"geometry":       {string(geometry)},
		"geometryType":   {"esriGeometryPolygon"},
		"inSR":           {wgs84},
		"outSR":          {wgs84},
		"spatialRel":     {"esriSpatialRelIntersects"},
		"outFields":      {outFields},
		"returnGeometry": {"false"},
	}

	features, err := c.query(ctx, operation, http.MethodPost, layerURL, params)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(features))
	for _, feature := range features {
		out = append(out, feature.Attributes)
	}
	return out, nil
}

type queryResponse struct {
	Features []struct {
		Attributes map[string]any `json:"attributes"`
		Geometry   *struct {
			Rings [][][2]float64 `json:"rings"`
		} `json:"geometry"`
	} `json:"features"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// serviceError reports the error ArcGIS embeds in a 200 body.
func (r *queryResponse) serviceError(operation string) error {
	if r.Error == nil {
		return nil
	}
	return &resilience.HTTPStatusError{
		Service:    "arcgis",
		Operation:  operation,
		StatusCode: r.Error.Code,
		Status:     strconv.Itoa(r.Error.Code),
		Body:       r.Error.Message,
	}
}

func (c *Client) query(ctx context.Context, operation, method, layerURL string, params url.Values) ([]domain.Feature, error) {
	var resp queryResponse
	if err := c.call(ctx, operation, method, layerURL+"/query", params, &resp); err != nil {
		return nil, err
	}
	features := make([]domain.Feature, 0, len(resp.Features))
	for _, f := range resp.Features {
		feature := domain.Feature{Attributes: f.Attributes}
		if feature.Attributes == nil {
			feature.Attributes = map[string]any{}
		}
		if f.Geometry != nil {
			feature.Rings = f.Geometry.Rings
		}
		features = append(features, feature)
	}
	return features, nil
}

func (c *Client) call(ctx context.Context, operation, method, endpoint string, params url.Values, out any) error {
	fn := func(callCtx context.Context) error {
		return c.do(callCtx, operation, method, endpoint, params, out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "arcgis."+strings.ReplaceAll(operation, " ", "_"), fn, resilience.ClassifyHTTP)
	} else {
		err = fn(ctx)
	}
	return resilience.WrapTemporary("arcgis "+operation, err, resilience.ClassifyHTTP)
}

func (c *Client) do(ctx context.Context, operation, method, endpoint string, params url.Values, out any) error {
	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	}
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("arcgis %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewHTTPStatusError("arcgis", operation, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	if q, ok := out.(*queryResponse); ok {
		return q.serviceError(operation)
	}
	return nil
}

func pointQuery(point domain.Coordinates) url.Values {
	geometry := fmt.Sprintf(`{"x":%s,"y":%s,"spatialReference":{"wkid":4326}}`,
		strconv.FormatFloat(point.Lon, 'f', -1, 64),
		strconv.FormatFloat(point.Lat, 'f', -1, 64),
	)
	return url.Values{
		"f":            {"json"},
		"geometry":     {geometry},
		"geometryType": {"esriGeometryPoint"},
		"inSR":         {wgs84},
		"spatialRel":   {"esriSpatialRelIntersects"},
	}
}

func trimEndpoints(e Endpoints) Endpoints {
	trim := func(s string) string { return strings.TrimRight(s, "/") }
	return Endpoints{
		Geocoder:     trim(e.Geocoder),
		Parcels:      trim(e.Parcels),
		BaseZoning:   trim(e.BaseZoning),
		Overlays:     trim(e.Overlays),
		FloodHazards: trim(e.FloodHazards),
	}
}
