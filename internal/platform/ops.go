package platform

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/alertidx/pkg/adapters/fs"
	"github.com/aretw0/alertidx/pkg/adapters/httpstore"
	"github.com/aretw0/alertidx/pkg/adapters/kv"
	"github.com/aretw0/alertidx/pkg/adapters/memory"
	"github.com/aretw0/alertidx/pkg/core"
)

func openMemory(o *options) core.Store {
	defaultIndex, _ := o.config["default_index"].(string)
	if o.logger != nil {
		o.logger.Debug("opening memory store", "default_index", defaultIndex)
	}
	return memory.New(memory.WithDefaultIndex(defaultIndex))
}

func openKV(path string, o *options) (core.Store, error) {
	defaultIndex, _ := o.config["default_index"].(string)
	readOnly, _ := o.config["read_only"].(bool)
	return kv.Open(path,
		kv.WithDefaultIndex(defaultIndex),
		kv.WithReadOnly(readOnly),
		kv.WithLogger(o.logger),
	)
}

func openFS(path string, o *options) (core.Store, error) {
	defaultIndex, _ := o.config["default_index"].(string)
	readOnly, _ := o.config["read_only"].(bool)
	mustExist, _ := o.config["must_exist"].(bool)
	format, _ := o.config["format"].(string)

	repo := fs.NewRepository(fs.Config{
		Path:         path,
		MustExist:    mustExist,
		ReadOnly:     readOnly,
		Format:       format,
		DefaultIndex: defaultIndex,
		Logger:       o.logger,
	})
	if err := repo.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

func openHTTP(baseURL string, o *options) (core.Store, error) {
	defaultIndex, _ := o.config["default_index"].(string)
	timeout, _ := o.config["timeout"].(time.Duration)

	opts := []httpstore.Option{
		httpstore.WithDefaultIndex(defaultIndex),
		httpstore.WithTimeout(timeout),
		httpstore.WithLogger(o.logger),
	}
	if c, ok := o.config["http_client"].(*http.Client); ok && c != nil {
		opts = append(opts, httpstore.WithHTTPClient(c))
	}
	return httpstore.New(baseURL, opts...)
}
