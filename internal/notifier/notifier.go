package notifier

import "github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"

// Noop is an Observer that ignores everything and never cancels. Use for runs
// started without a front end, or in tests that only check the pipeline's side effects.
var Noop domain.Observer = noopObserver{}

type noopObserver struct{}

func (noopObserver) OnProgress(domain.ProgressEvent)       {}
func (noopObserver) OnFileDelivered(domain.DeliveryResult) {}
func (noopObserver) OnCancelRequested() bool               { return false }
