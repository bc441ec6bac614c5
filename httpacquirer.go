package hgt

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"slices"

	"go.uber.org/zap"
)

// Remote tile sources.
const (
	SkadiURLTemplate = "https://s3.amazonaws.com/elevation-tiles-prod/skadi/{lat}/{name}.hgt.gz"
	NASAURLTemplate  = "https://e4ftl01.cr.usgs.gov/MEASURES/%[1]s.003/2000.02.11/{name}.%[1]s.hgt.zip"
	NASAAuthHost     = "urs.earthdata.nasa.gov"
)

// A NASAProduct is a NASA SRTM product.
type NASAProduct string

const (
	SRTMGL1 NASAProduct = "SRTMGL1"
	SRTMGL3 NASAProduct = "SRTMGL3"
)

// An HTTPAcquirer downloads tiles from a URL template.
type HTTPAcquirer struct {
	client      *http.Client
	urlTemplate string
	username    string
	password    string
	authHost    string
	logger      *zap.Logger
}

// An HTTPAcquirerOption sets an option on an HTTPAcquirer.
type HTTPAcquirerOption func(*HTTPAcquirer)

// NewHTTPAcquirer returns a new HTTPAcquirer. urlTemplate may contain {name}
// and {lat}, see expandTemplate.
func NewHTTPAcquirer(urlTemplate string, options ...HTTPAcquirerOption) (*HTTPAcquirer, error) {
	a := &HTTPAcquirer{
		urlTemplate: urlTemplate,
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(a)
	}

	var client http.Client
	if a.client != nil {
		client = *a.client
	}
	if a.username != "" && client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}
	if a.username != "" && a.authHost != "" {
		client.CheckRedirect = a.checkRedirect
	}
	a.client = &client

	return a, nil
}

// NewSkadiAcquirer returns an HTTPAcquirer for the public Skadi tiles.
func NewSkadiAcquirer(options ...HTTPAcquirerOption) (*HTTPAcquirer, error) {
	return NewHTTPAcquirer(SkadiURLTemplate, options...)
}

// NewNASAAcquirer returns an HTTPAcquirer for NASA's SRTM products, which
// require Earthdata credentials.
func NewNASAAcquirer(product NASAProduct, username, password string, options ...HTTPAcquirerOption) (*HTTPAcquirer, error) {
	return NewHTTPAcquirer(fmt.Sprintf(NASAURLTemplate, product), slices.Concat(
		[]HTTPAcquirerOption{
			WithCredentials(username, password),
			WithAuthHost(NASAAuthHost),
		},
		options,
	)...)
}

// WithAuthHost restricts credentials to requests to authHost, including
// requests that are redirected there.
func WithAuthHost(authHost string) HTTPAcquirerOption {
	return func(a *HTTPAcquirer) {
		a.authHost = authHost
	}
}

// WithCredentials sets HTTP basic credentials.
func WithCredentials(username, password string) HTTPAcquirerOption {
	return func(a *HTTPAcquirer) {
		a.username = username
		a.password = password
	}
}

func WithHTTPClient(client *http.Client) HTTPAcquirerOption {
	return func(a *HTTPAcquirer) {
		a.client = client
	}
}

func WithHTTPLogger(logger *zap.Logger) HTTPAcquirerOption {
	return func(a *HTTPAcquirer) {
		a.logger = logger
	}
}

func (a *HTTPAcquirer) AcquireTile(ctx context.Context, dir, name string) bool {
	if tileExists(dir, name) {
		return true
	}
	url := expandTemplate(a.urlTemplate, name)
	filename, gzipped := localFilename(name, url)
	a.logger.Info("downloading tile", zap.String("name", name), zap.String("url", url))
	if err := placeFile(dir, filename, func(dst *os.File) error {
		return a.download(ctx, url, dst, gzipped)
	}); err != nil {
		a.logger.Error("download tile", zap.String("url", url), zap.Error(err))
		return false
	}
	return true
}

func (a *HTTPAcquirer) download(ctx context.Context, url string, dst *os.File, gzipped bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if a.username != "" && (a.authHost == "" || req.URL.Host == a.authHost) {
		req.SetBasicAuth(a.username, a.password)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return copyTile(dst, resp.Body, gzipped)
}

// checkRedirect adds credentials to redirects to a.authHost.
func (a *HTTPAcquirer) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("%s: too many redirects", req.URL)
	}
	if req.URL.Host == a.authHost {
		req.SetBasicAuth(a.username, a.password)
	}
	return nil
}
