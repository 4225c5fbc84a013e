package transport

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/spnego"

	"github.com/aretw0/alertidx/pkg/core"
)

// KerberosName is the registry name of the SPNEGO configurer.
const KerberosName = "kerberos"

// KerberosConfig locates the credentials used for SPNEGO authentication.
type KerberosConfig struct {
	Krb5Conf  string `yaml:"krb5_conf"`
	Keytab    string `yaml:"keytab"`
	Principal string `yaml:"principal"`
	Realm     string `yaml:"realm"`
	// SPN overrides the service principal. Empty derives HTTP/<host> per request.
	SPN string `yaml:"spn,omitempty"`
}

// Validate reports missing settings.
func (c KerberosConfig) Validate() error {
	switch {
	case c.Krb5Conf == "":
		return fmt.Errorf("%w: kerberos: krb5_conf is required", core.ErrInvalidRequest)
	case c.Keytab == "":
		return fmt.Errorf("%w: kerberos: keytab is required", core.ErrInvalidRequest)
	case c.Principal == "":
		return fmt.Errorf("%w: kerberos: principal is required", core.ErrInvalidRequest)
	case c.Realm == "":
		return fmt.Errorf("%w: kerberos: realm is required", core.ErrInvalidRequest)
	}
	return nil
}

// EnableKerberos registers the SPNEGO configurer. Only the first call has an
// effect; later calls are no-ops even with a different configuration.
func EnableKerberos(cfg KerberosConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	AddConfigurer(KerberosName, &kerberos{cfg: cfg})
	return nil
}

type kerberos struct {
	cfg KerberosConfig

	once   sync.Once
	client *client.Client
	err    error
}

// login loads the credentials and obtains a TGT once per process.
func (k *kerberos) login() (*client.Client, error) {
	k.once.Do(func() {
		krb5, err := config.Load(k.cfg.Krb5Conf)
		if err != nil {
			k.err = fmt.Errorf("load %s: %w", k.cfg.Krb5Conf, err)
			return
		}
		kt, err := keytab.Load(k.cfg.Keytab)
		if err != nil {
			k.err = fmt.Errorf("load %s: %w", k.cfg.Keytab, err)
			return
		}
		cl := client.NewWithKeytab(k.cfg.Principal, k.cfg.Realm, kt, krb5)
		if err := cl.Login(); err != nil {
			k.err = fmt.Errorf("kerberos login as %s@%s: %w", k.cfg.Principal, k.cfg.Realm, err)
			return
		}
		k.client = cl
	})
	return k.client, k.err
}

// Configure implements Configurer.
func (k *kerberos) Configure(c *http.Client) error {
	cl, err := k.login()
	if err != nil {
		return err
	}
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c.Transport = &spnegoTransport{client: cl, spn: k.cfg.SPN, next: next}
	return nil
}

type spnegoTransport struct {
	client *client.Client
	spn    string
	next   http.RoundTripper
}

func (t *spnegoTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if err := spnego.SetSPNEGOHeader(t.client, out, t.spn); err != nil {
		return nil, fmt.Errorf("spnego: %w", err)
	}
	return t.next.RoundTrip(out)
}
