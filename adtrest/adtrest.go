// Package adtrest implements [adt.Collaborator] over the data-plane REST API of
// Azure Digital Twins.
//
// Requests go through an azcore pipeline, which takes care of authentication
// (bearer tokens for the digital twins scope), retries of transient faults,
// logging and tracing. Responses other than the documented success status are
// returned as *azcore.ResponseError.
package adtrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/go-digitaltwin/go-adt"
)

const (
	moduleName    = "adtrest"
	moduleVersion = "v0.1.0"
	// Scope is the OAuth scope of the Azure Digital Twins data plane.
	Scope = "https://digitaltwins.azure.net/.default"
)

// Options configures a Collaborator.
type Options struct {
	azcore.ClientOptions
	// APIVersion overrides adt.DefaultAPIVersion.
	APIVersion string
}

// Collaborator issues REST calls against a single Azure Digital Twins instance.
type Collaborator struct {
	endpoint   string
	apiVersion string
	pl         runtime.Pipeline
}

var _ adt.Collaborator = (*Collaborator)(nil)

// New returns a Collaborator for the instance at endpoint, authenticating with
// cred. A nil opts is equivalent to the zero Options.
func New(endpoint string, cred azcore.TokenCredential, opts *Options) (*Collaborator, error) {
	if opts == nil {
		opts = &Options{}
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q lacks a scheme or a host", endpoint)
	}
	apiVersion := opts.APIVersion
	if apiVersion == "" {
		apiVersion = adt.DefaultAPIVersion
	}

	auth := runtime.NewBearerTokenPolicy(cred, []string{Scope}, nil)
	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerRetry: []policy.Policy{auth},
	}, &opts.ClientOptions)

	return &Collaborator{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiVersion: apiVersion,
		pl:         pl,
	}, nil
}

// Dial implements [adt.Dialer]. It authenticates as the service principal named
// by cfg with its client secret.
func Dial(_ context.Context, cfg adt.Config) (adt.Collaborator, error) {
	cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("client secret credential: %w", err)
	}
	c, err := New(cfg.Endpoint, cred, &Options{APIVersion: cfg.APIVersion})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListModels lists all models of the instance, without their definitions.
func (c *Collaborator) ListModels(ctx context.Context) ([]adt.Model, error) {
	pager := runtime.NewPager(runtime.PagingHandler[linkedPage[adt.Model]]{
		More: func(page linkedPage[adt.Model]) bool { return page.NextLink != "" },
		Fetcher: func(ctx context.Context, page *linkedPage[adt.Model]) (linkedPage[adt.Model], error) {
			return fetchLinkedPage[adt.Model](ctx, c, "/models", page)
		},
	})
	return collect(ctx, pager, func(page linkedPage[adt.Model]) []adt.Model { return page.Value })
}

// GetModel fetches a model together with its DTDL definition.
func (c *Collaborator) GetModel(ctx context.Context, id string) (adt.Model, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/models/"+url.PathEscape(id), url.Values{
		"includeModelDefinition": {"true"},
	})
	if err != nil {
		return adt.Model{}, err
	}
	var m adt.Model
	if err := c.doJSON(req, &m, http.StatusOK); err != nil {
		return adt.Model{}, err
	}
	return m, nil
}

// GetTwin fetches a twin by its ID.
func (c *Collaborator) GetTwin(ctx context.Context, id string) (adt.Twin, error) {
	req, err := c.newRequest(ctx, http.MethodGet, twinPath(id), nil)
	if err != nil {
		return adt.Twin{}, err
	}
	var t adt.Twin
	if err := c.doJSON(req, &t, http.StatusOK); err != nil {
		return adt.Twin{}, err
	}
	return t, nil
}

type queryRequest struct {
	Query             string `json:"query"`
	ContinuationToken string `json:"continuationToken,omitempty"`
}

type queryPage struct {
	Value             []adt.Twin `json:"value"`
	ContinuationToken string     `json:"continuationToken"`
}

// QueryTwins runs the query and follows its continuation tokens until all the
// selected twins are returned.
func (c *Collaborator) QueryTwins(ctx context.Context, query string) ([]adt.Twin, error) {
	pager := runtime.NewPager(runtime.PagingHandler[queryPage]{
		More: func(page queryPage) bool { return page.ContinuationToken != "" },
		Fetcher: func(ctx context.Context, page *queryPage) (queryPage, error) {
			body := queryRequest{Query: query}
			if page != nil {
				body.ContinuationToken = page.ContinuationToken
			}
			req, err := c.newRequest(ctx, http.MethodPost, "/query", nil)
			if err != nil {
				return queryPage{}, err
			}
			if err := runtime.MarshalAsJSON(req, body); err != nil {
				return queryPage{}, err
			}
			var next queryPage
			if err := c.doJSON(req, &next, http.StatusOK); err != nil {
				return queryPage{}, err
			}
			return next, nil
		},
	})
	return collect(ctx, pager, func(page queryPage) []adt.Twin { return page.Value })
}

// UpsertTwin creates or replaces a twin.
func (c *Collaborator) UpsertTwin(ctx context.Context, id string, doc adt.TwinDocument) (adt.Twin, error) {
	req, err := c.newRequest(ctx, http.MethodPut, twinPath(id), nil)
	if err != nil {
		return adt.Twin{}, err
	}
	if err := runtime.MarshalAsJSON(req, doc); err != nil {
		return adt.Twin{}, err
	}
	var t adt.Twin
	if err := c.doJSON(req, &t, http.StatusOK); err != nil {
		return adt.Twin{}, err
	}
	return t, nil
}

// ApplyPatch sends doc as a JSON Patch. An empty document is sent as [].
func (c *Collaborator) ApplyPatch(ctx context.Context, id string, doc adt.PatchDocument) error {
	req, err := c.newRequest(ctx, http.MethodPatch, twinPath(id), nil)
	if err != nil {
		return err
	}
	p, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	if err := req.SetBody(streaming.NopCloser(bytes.NewReader(p)), "application/json-patch+json"); err != nil {
		return err
	}
	_, err = c.do(req, http.StatusNoContent, http.StatusOK)
	return err
}

// DeleteTwin deletes a twin. The service fails with 404 if the twin does not
// exist.
func (c *Collaborator) DeleteTwin(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, twinPath(id), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, http.StatusNoContent, http.StatusOK)
	return err
}

// ListRelationships lists the outgoing relationships of a twin.
func (c *Collaborator) ListRelationships(ctx context.Context, id string) ([]adt.Relationship, error) {
	path := twinPath(id) + "/relationships"
	pager := runtime.NewPager(runtime.PagingHandler[linkedPage[adt.Relationship]]{
		More: func(page linkedPage[adt.Relationship]) bool { return page.NextLink != "" },
		Fetcher: func(ctx context.Context, page *linkedPage[adt.Relationship]) (linkedPage[adt.Relationship], error) {
			return fetchLinkedPage[adt.Relationship](ctx, c, path, page)
		},
	})
	return collect(ctx, pager, func(page linkedPage[adt.Relationship]) []adt.Relationship { return page.Value })
}

func twinPath(id string) string {
	return "/digitaltwins/" + url.PathEscape(id)
}

// newRequest prepares a request for the given path of the instance, with the
// configured api-version.
func (c *Collaborator) newRequest(ctx context.Context, method, path string, query url.Values) (*policy.Request, error) {
	return c.newRequestURL(ctx, method, runtime.JoinPaths(c.endpoint, path), query)
}

func (c *Collaborator) newRequestURL(ctx context.Context, method, endpoint string, query url.Values) (*policy.Request, error) {
	req, err := runtime.NewRequest(ctx, method, endpoint)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	q := req.Raw().URL.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if q.Get("api-version") == "" {
		q.Set("api-version", c.apiVersion)
	}
	req.Raw().URL.RawQuery = q.Encode()
	req.Raw().Header.Set("Accept", "application/json")
	return req, nil
}

// do sends the request and turns any status other than the given ones into an
// *azcore.ResponseError.
func (c *Collaborator) do(req *policy.Request, statusCodes ...int) (*http.Response, error) {
	resp, err := c.pl.Do(req)
	if err != nil {
		return nil, err
	}
	if !runtime.HasStatusCode(resp, statusCodes...) {
		return nil, runtime.NewResponseError(resp)
	}
	return resp, nil
}

func (c *Collaborator) doJSON(req *policy.Request, v any, statusCodes ...int) error {
	resp, err := c.do(req, statusCodes...)
	if err != nil {
		return err
	}
	if err := runtime.UnmarshalAsJSON(resp, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// linkedPage is a page of a listing that links to its next page by URL.
type linkedPage[V any] struct {
	Value    []V    `json:"value"`
	NextLink string `json:"nextLink"`
}

// fetchLinkedPage fetches the first page at path when prev is nil, and the page
// prev links to otherwise.
func fetchLinkedPage[V any](ctx context.Context, c *Collaborator, path string, prev *linkedPage[V]) (linkedPage[V], error) {
	var (
		req *policy.Request
		err error
	)
	if prev == nil {
		req, err = c.newRequest(ctx, http.MethodGet, path, nil)
	} else {
		req, err = c.newRequestURL(ctx, http.MethodGet, prev.NextLink, nil)
	}
	if err != nil {
		return linkedPage[V]{}, err
	}
	var page linkedPage[V]
	if err := c.doJSON(req, &page, http.StatusOK); err != nil {
		return linkedPage[V]{}, err
	}
	return page, nil
}

// collect drains a pager into a single slice.
func collect[P, V any](ctx context.Context, pager *runtime.Pager[P], values func(P) []V) ([]V, error) {
	var all []V
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, values(page)...)
	}
	return all, nil
}
