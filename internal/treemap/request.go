package treemap

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"virtnet/internal/netaddr"
)

// MaxEntries bounds the size of a single request.
const MaxEntries = 1 << 17

var validate = validator.New()

// Request is the body of a treemap build.
type Request struct {
	Supernet string           `json:"supernet" yaml:"supernet" validate:"required,cidrv4"`
	CIDRDict map[string]Entry `json:"cidrDict" yaml:"cidrDict" validate:"max=131072"`
}

// Validate checks the request shape. Failures wrap netaddr.ErrInvalidCIDR so
// callers can treat them like any other bad range.
func (r *Request) Validate() error {
	if r == nil {
		return errors.New("treemap request cannot be nil")
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", netaddr.ErrInvalidCIDR, strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Build validates the request and runs the builder.
func (r *Request) Build() (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return Build(r.Supernet, r.CIDRDict)
}

// DecodeRequest reads a request from YAML or JSON.
func DecodeRequest(rd io.Reader) (*Request, error) {
	var req Request
	if err := yaml.NewDecoder(rd).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode treemap request: %w", err)
	}
	return &req, nil
}
