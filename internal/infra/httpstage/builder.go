package httpstage

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/conveyorhq/conveyor/internal/pipeline"
)

// Builder adapts the client into the "http" stage kind.
//
// Parameters:
//
//	url     request target (required)
//	method  HTTP method, default POST
//	payload "input" (default) sends the job input; any other value
//	        names a stage whose recorded output becomes the body
func Builder(c *Client) pipeline.StageBuilder {
	return func(params map[string]string) (pipeline.StageFunc, error) {
		url := params["url"]
		if url == "" {
			return nil, fmt.Errorf("http stage: url is required")
		}
		method := strings.ToUpper(params["method"])
		if method == "" {
			method = http.MethodPost
		}
		source := params["payload"]

		return func(ctx context.Context, sc *pipeline.StageContext) (any, error) {
			var payload any
			switch source {
			case "", "input":
				payload = sc.Input
			default:
				v, ok := sc.Outputs[source]
				if !ok {
					return nil, fmt.Errorf("http stage: no recorded output for stage %s", source)
				}
				payload = v
			}
			return c.Do(ctx, method, url, payload)
		}, nil
	}
}
