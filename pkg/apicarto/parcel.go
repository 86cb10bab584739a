package apicarto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/resilience"
)

// featureCollection is the subset of the API Carto response we read.
type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         any            `json:"id"`
	Properties map[string]any `json:"properties"`
}

// PointQuery encodes (lat, lon) as a GeoJSON Point. GeoJSON orders
// coordinates longitude first.
func PointQuery(lat, lon float64) (string, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{lon, lat})
	g, err := geojson.Encode(pt)
	if err != nil {
		return "", eris.Wrap(err, "apicarto: encode point")
	}
	data, err := json.Marshal(g)
	if err != nil {
		return "", eris.Wrap(err, "apicarto: marshal point")
	}
	return string(data), nil
}

// LookupParcel queries the parcel endpoint for the point (lat, lon).
func (c *client) LookupParcel(ctx context.Context, lat, lon float64) (*model.Parcel, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait fails early when the next token lies past the deadline.
		cause := ctx.Err()
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		return nil, fmt.Errorf("apicarto: rate limit: %w", cause)
	}

	geomJSON, err := PointQuery(lat, lon)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"_limit": {"1"},
		"geom":   {geomJSON},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "apicarto: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "apicarto: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resilience.NewTransientError(
			eris.Errorf("apicarto: returned status %d", resp.StatusCode), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "apicarto: read body"), resp.StatusCode)
	}

	return parseParcel(body)
}

// parseParcel extracts the first feature of a parcel response.
func parseParcel(body []byte) (*model.Parcel, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fc featureCollection
	if err := dec.Decode(&fc); err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "apicarto: parse response"), http.StatusOK)
	}

	if len(fc.Features) == 0 {
		return nil, nil
	}

	f := fc.Features[0]
	props := f.Properties
	return &model.Parcel{
		ID:      stringify(f.ID),
		Numero:  stringify(props["numero"]),
		Feuille: stringify(props["feuille"]),
		Section: stringify(props["section"]),
		CodeDep: stringify(props["code_dep"]),
		CodeCom: stringify(props["code_com"]),
		ComAbs:  stringify(props["com_abs"]),
		Echelle: stringify(props["echelle"]),
		CodeArr: stringify(props["code_arr"]),
	}, nil
}

// stringify renders a decoded JSON value as a cell value. null becomes "".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}
}
