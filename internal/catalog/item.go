// Package catalog builds STAC items describing converted alert artifacts and
// writes them to the catalog bucket.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/alertzarr/internal/domain"
)

const (
	stacVersion       = "1.0.0"
	defaultCollection = "alertzarr-disasters"

	mediaZarr    = "application/vnd+zarr"
	mediaJSON    = "application/json"
	mediaHTML    = "text/html"
	mediaGeoTIFF = "image/tiff; application=geotiff"
	mediaJPEG    = "image/jpeg"
)

// Item is a STAC Feature.
type Item struct {
	Type        string           `json:"type"`
	StacVersion string           `json:"stac_version"`
	ID          string           `json:"id"`
	Collection  string           `json:"collection"`
	Description string           `json:"description"`
	Geometry    map[string]any   `json:"geometry"`
	BBox        []float64        `json:"bbox"`
	Properties  Properties       `json:"properties"`
	Assets      map[string]Asset `json:"assets"`
	Links       []Link           `json:"links"`
}

// Properties holds the item's datetime and alert attributes.
type Properties struct {
	Datetime   string `json:"datetime"`
	Created    string `json:"created"`
	Severity   string `json:"alert:severity"`
	Hazard     string `json:"alert:hazard"`
	SceneCount int    `json:"source:scene_count"`
}

type Asset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type"`
	Roles []string `json:"roles"`
	Title string   `json:"title,omitempty"`
}

type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// ItemKey is the object key an item is stored under in the catalog bucket.
func ItemKey(id string) string {
	return "items/" + id + ".json"
}

// BuildItem describes output as a STAC item. The alert must carry a valid
// area of interest; otherwise the error wraps domain.ErrGeometry.
func BuildItem(alert domain.Alert, output domain.ConversionOutput, bucket, publicBaseURL string) (Item, error) {
	bbox, err := domain.BoundingBox(alert.AreaOfInterest)
	if err != nil {
		return Item{}, fmt.Errorf("build item for %s: %w", alert.ID, err)
	}

	id := output.ArtifactID
	if id == "" {
		id = domain.Slugify(alert.ID) + "-geozarr"
	}
	collection := output.CollectionID
	if collection == "" {
		collection = defaultCollection
	}

	item := Item{
		Type:        "Feature",
		StacVersion: stacVersion,
		ID:          id,
		Collection:  collection,
		Description: alert.Description,
		Geometry:    alert.AreaOfInterest,
		BBox:        bbox,
		Properties: Properties{
			Datetime:   itemDatetime(alert.Issued),
			Created:    domain.Now().UTC().Format(time.RFC3339),
			Severity:   alert.Severity,
			Hazard:     alert.HazardType,
			SceneCount: len(output.Scenes),
		},
		Assets: map[string]Asset{"geozarr": primaryAsset(output)},
		Links:  catalogLinks(id, collection, bucket, publicBaseURL),
	}

	if v := output.Viewer; v != nil {
		addViewer(&item, v)
	}
	for i, scene := range output.Scenes {
		addScene(&item, i+1, scene)
	}
	return item, nil
}

func itemDatetime(issued string) string {
	if t, err := domain.ParseTimestamp(issued); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return issued
}

func primaryAsset(output domain.ConversionOutput) Asset {
	if output.IsZarr() {
		return Asset{Href: output.URI, Type: mediaZarr, Roles: []string{"data", "zarr"}}
	}
	return Asset{Href: output.URI, Type: mediaJSON, Roles: []string{"data"}}
}

// catalogLinks returns self, collection and root links. Self is always first.
func catalogLinks(id, collection, bucket, publicBaseURL string) []Link {
	if base := strings.TrimRight(publicBaseURL, "/"); base != "" {
		return []Link{
			{Rel: "self", Href: base + "/" + ItemKey(id), Type: mediaJSON},
			{Rel: "collection", Href: fmt.Sprintf("%s/collections/%s.json", base, collection), Type: mediaJSON},
			{Rel: "root", Href: base, Type: mediaJSON},
		}
	}
	root := "s3://" + bucket
	return []Link{
		{Rel: "self", Href: root + "/" + ItemKey(id), Type: mediaJSON},
		{Rel: "collection", Href: fmt.Sprintf("%s/collections/%s.json", root, collection), Type: mediaJSON},
		{Rel: "root", Href: root + "/catalog.json", Type: mediaJSON},
	}
}

func addViewer(item *Item, v *domain.ViewerLinks) {
	tileJSONTitle := fmt.Sprintf("TileJSON (%s)", v.TileMatrixSet)
	item.Assets["viewer"] = Asset{
		Href:  v.ViewerURL,
		Type:  mediaHTML,
		Roles: []string{"overview", "metadata"},
		Title: "Interactive tile viewer",
	}
	item.Assets["tilejson"] = Asset{
		Href:  v.TileJSONURL,
		Type:  mediaJSON,
		Roles: []string{"metadata", "tilejson"},
		Title: tileJSONTitle,
	}
	item.Links = append(item.Links,
		Link{Rel: "preview", Href: v.ViewerURL, Type: mediaHTML, Title: "Tile viewer"},
		Link{Rel: "tilejson", Href: v.TileJSONURL, Type: mediaJSON, Title: tileJSONTitle},
		Link{Rel: "info", Href: v.InfoURL, Type: mediaJSON, Title: "Dataset metadata"},
	)
}

func addScene(item *Item, n int, scene domain.SceneCandidate) {
	label := fmt.Sprintf("source-scene-%d", n)
	item.Assets[label] = Asset{
		Href:  scene.SourceHref(),
		Type:  mediaGeoTIFF,
		Roles: []string{"source"},
		Title: scene.Collection + " " + scene.ID,
	}
	if scene.PreviewHref != "" {
		item.Assets[label+"-preview"] = Asset{
			Href:  scene.PreviewHref,
			Type:  mediaJPEG,
			Roles: []string{"preview"},
		}
	}
	item.Links = append(item.Links, Link{
		Rel:   "derived_from",
		Href:  scene.CatalogItemHref,
		Type:  mediaJSON,
		Title: scene.Collection + ":" + scene.ID,
	})
}
