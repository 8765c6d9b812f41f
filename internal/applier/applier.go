// Package applier merges sanitized assistant responses into the local document.
package applier

import (
	"context"
	"encoding/json"

	"worklog/api/internal/document"
	"worklog/api/internal/gateway"
)

// Updater is the mutation entry point of the sync orchestrator.
type Updater interface {
	Update(ctx context.Context, mutate func(doc *document.Document) error) error
}

// Outcome is what the caller shows the user.
type Outcome struct {
	Message string
	// Applied lists the patch keys merged into the document, sorted.
	Applied []string
	// Rejected is set when a preview_patch carried a patch that failed validation or decoding.
	Rejected string
}

type Applier struct {
	updater Updater
}

func New(updater Updater) *Applier {
	return &Applier{updater: updater}
}

// Apply surfaces a readonly message unchanged. A preview_patch is validated against the
// whitelist again and shallow-merged through the updater, which refreshes the view and waits
// for the write to settle. Re-applying the same patch yields the same document.
func (a *Applier) Apply(ctx context.Context, resp gateway.Response) (Outcome, error) {
	outcome := Outcome{Message: resp.Message}
	if resp.Mode != gateway.ModePreviewPatch || resp.Patch == nil {
		return outcome, nil
	}

	raw, err := json.Marshal(resp.Patch)
	if err != nil {
		outcome.Rejected = err.Error()
		return outcome, nil
	}
	result := document.ValidatePatch(raw)
	if !result.OK() {
		outcome.Rejected = result.Reason
		return outcome, nil
	}
	if len(result.Fields) == 0 {
		return outcome, nil
	}

	err = a.updater.Update(ctx, func(doc *document.Document) error {
		merged, err := document.ApplyPatch(*doc, result.Fields)
		if err != nil {
			return err
		}
		*doc = merged
		return nil
	})
	if err != nil {
		return outcome, err
	}
	outcome.Applied = result.Keys()
	return outcome, nil
}
