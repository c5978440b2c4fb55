package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
)

type slug struct {
	Slug string `json:"slug"`
}

type deviceTypeRecord struct {
	Slug string `json:"slug"`
	Arch []slug `json:"is_of__cpu_architecture"`
}

type application struct {
	ID           int64              `json:"id"`
	Name         string             `json:"app_name"`
	Slug         string             `json:"slug"`
	IsLegacy     bool               `json:"is_legacy"`
	DeviceType   []deviceTypeRecord `json:"is_for__device_type"`
	Organization []struct {
		Handle string `json:"handle"`
	} `json:"organization"`
}

func (a application) toApplication() *types.Application {
	app := &types.Application{ID: a.ID, Name: a.Name, Slug: a.Slug, IsLegacy: a.IsLegacy}
	if len(a.DeviceType) > 0 {
		app.DeviceType = a.DeviceType[0].Slug
		if len(a.DeviceType[0].Arch) > 0 {
			app.Arch = a.DeviceType[0].Arch[0].Slug
		}
	}
	if len(a.Organization) > 0 {
		app.Owner = a.Organization[0].Handle
	} else if owner, _, ok := strings.Cut(a.Slug, "/"); ok {
		app.Owner = owner
	}
	return app
}

type service struct {
	ID   int64  `json:"id"`
	Name string `json:"service_name"`
}

type imageLocation struct {
	Image []struct {
		Location string `json:"is_stored_at__image_location"`
	} `json:"image"`
}

type previousRelease struct {
	ID     int64           `json:"id"`
	Images []imageLocation `json:"contains__image"`
}

// CreateRelease creates a running release with one image record per service
func (c *Client) CreateRelease(ctx context.Context, app *types.Application, services []string, composition map[string]any, commit string) (*types.ReleaseCreated, error) {
	logger := log.WithFunc("cloud.CreateRelease").WithField("app", app.ID)
	now := time.Now().UTC()
	release := &types.Release{}
	if err := c.call(ctx, request{
		name:   "CreateRelease",
		method: http.MethodPost,
		url:    c.apiURL("/release"),
		body: map[string]any{
			"belongs_to__application": app.ID,
			"commit":                  commit,
			"composition":             composition,
			"source":                  types.ReleaseSource,
			"status":                  types.StatusRunning,
			"start_timestamp":         now,
		},
		retry: true,
	}, release); err != nil {
		return nil, err
	}
	logger.Infof(ctx, "release %d created with commit %s", release.ID, commit)

	created := &types.ReleaseCreated{Release: release, ServiceImages: map[string]*types.ServiceImage{}}
	for _, name := range services {
		svc, err := c.getOrCreateService(ctx, app.ID, name)
		if err != nil {
			return created, err
		}
		image := &types.ServiceImage{}
		if err := c.call(ctx, request{
			name:   "CreateImage",
			method: http.MethodPost,
			url:    c.apiURL("/image"),
			body: map[string]any{
				"is_a_build_of__service": svc.ID,
				"status":                 types.StatusRunning,
				"start_timestamp":        now,
			},
			retry: true,
		}, image); err != nil {
			return created, err
		}
		if err := c.call(ctx, request{
			name:   "CreateImageRelease",
			method: http.MethodPost,
			url:    c.apiURL("/image__is_part_of__release"),
			body:   map[string]any{"image": image.ID, "is_part_of__release": release.ID},
			retry:  true,
		}, nil); err != nil {
			return created, err
		}
		created.ServiceImages[name] = image
	}
	return created, nil
}

func (c *Client) getOrCreateService(ctx context.Context, appID int64, name string) (*service, error) {
	resp := d[service]{}
	if err := c.call(ctx, request{
		name:   "GetService",
		method: http.MethodGet,
		url:    c.apiURL("/service"),
		query: url.Values{
			"$filter": {fmt.Sprintf("application eq %d and service_name eq %s", appID, quote(name))},
			"$select": {"id,service_name"},
		},
		retry: true,
	}, &resp); err != nil {
		return nil, err
	}
	if len(resp.D) > 0 {
		return &resp.D[0], nil
	}
	svc := &service{}
	return svc, c.call(ctx, request{
		name:   "CreateService",
		method: http.MethodPost,
		url:    c.apiURL("/service"),
		body:   map[string]any{"application": appID, "service_name": name},
		retry:  true,
	}, svc)
}

// PatchRelease updates a release with a single attempt
func (c *Client) PatchRelease(ctx context.Context, releaseID int64, patch map[string]any) error {
	return c.call(ctx, request{
		name:   "PatchRelease",
		method: http.MethodPatch,
		url:    c.apiURL(fmt.Sprintf("/release(%d)", releaseID)),
		body:   patch,
	}, nil)
}

// CancelRelease marks a release cancelled
func (c *Client) CancelRelease(ctx context.Context, releaseID int64) error {
	return c.PatchRelease(ctx, releaseID, map[string]any{
		"status":        types.StatusCancelled,
		"end_timestamp": time.Now().UTC(),
	})
}

// UpdateServiceImage patches an image record
func (c *Client) UpdateServiceImage(ctx context.Context, imageID int64, patch map[string]any) error {
	return c.call(ctx, request{
		name:   "UpdateServiceImage",
		method: http.MethodPatch,
		url:    c.apiURL(fmt.Sprintf("/image(%d)", imageID)),
		body:   patch,
		retry:  true,
	}, nil)
}

// PreviousRepositories returns the repos of the newest successful release
func (c *Client) PreviousRepositories(ctx context.Context, appID int64) ([]string, error) {
	resp := d[previousRelease]{}
	if err := c.call(ctx, request{
		name:   "PreviousRepositories",
		method: http.MethodGet,
		url:    c.apiURL("/release"),
		query: url.Values{
			"$filter":  {fmt.Sprintf("belongs_to__application eq %d and status eq 'success'", appID)},
			"$select":  {"id"},
			"$expand":  {"contains__image($select=image;$expand=image($select=is_stored_at__image_location))"},
			"$orderby": {"created_at desc"},
			"$top":     {"1"},
		},
		retry: true,
	}, &resp); err != nil {
		return nil, err
	}
	repos := []string{}
	for _, r := range resp.D {
		for _, ci := range r.Images {
			for _, image := range ci.Image {
				if repo := repository(image.Location); repo != "" {
					repos = append(repos, repo)
				}
			}
		}
	}
	return repos, nil
}

// repository strips registry host, tag and digest from an image location
func repository(location string) string {
	if location == "" {
		return ""
	}
	if i := strings.Index(location, "@"); i >= 0 {
		location = location[:i]
	}
	if host, rest, ok := strings.Cut(location, "/"); ok && strings.ContainsAny(host, ".:") {
		location = rest
	}
	if i := strings.LastIndex(location, ":"); i > strings.LastIndex(location, "/") {
		location = location[:i]
	}
	return location
}

// UploadLegacyImage streams a saved image to the builder, the stream is not retried
func (c *Client) UploadLegacyImage(ctx context.Context, app *types.Application, image io.Reader) (string, error) {
	resp := struct {
		ID      string `json:"id"`
		BuildID string `json:"buildId"`
	}{}
	if err := c.call(ctx, request{
		name:   "UploadLegacyImage",
		method: http.MethodPost,
		url:    c.config.Builder + "/v1/upload",
		query:  url.Values{"owner": {app.Owner}, "app": {app.Name}},
		raw:    image,
	}, &resp); err != nil {
		return "", err
	}
	if resp.BuildID != "" {
		return resp.BuildID, nil
	}
	if resp.ID == "" {
		return "", errors.Wrap(types.ErrAPIRequest, "builder returned no build id")
	}
	return resp.ID, nil
}

// UploadLegacyLogs attaches build logs to a legacy build
func (c *Client) UploadLegacyLogs(ctx context.Context, app *types.Application, buildID, logs string) error {
	return c.call(ctx, request{
		name:   "UploadLegacyLogs",
		method: http.MethodPost,
		url:    c.config.Builder + "/v1/update",
		query:  url.Values{"owner": {app.Owner}, "app": {app.Name}, "buildId": {buildID}},
		body:   map[string]any{"buildLogs": logs},
		retry:  true,
	}, nil)
}
