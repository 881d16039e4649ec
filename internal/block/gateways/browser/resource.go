package browser

import (
	"github.com/go-rod/rod/lib/proto"

	"github.com/haukened/rr-block/internal/block/domain"
)

// resourceTypeFor maps a DevTools resource type onto the rule engine's
// vocabulary. Documents are reported as main_frame: the Fetch domain does
// not say whether a document loads into a frame, and every block rule
// covers both.
func resourceTypeFor(t proto.NetworkResourceType) domain.ResourceType {
	switch t {
	case proto.NetworkResourceTypeDocument:
		return domain.ResourceMainFrame
	case proto.NetworkResourceTypeXHR, proto.NetworkResourceTypeFetch:
		return domain.ResourceXMLHTTPRequest
	case proto.NetworkResourceTypeMedia:
		return domain.ResourceMedia
	case proto.NetworkResourceTypeImage:
		return domain.ResourceImage
	case proto.NetworkResourceTypeScript:
		return domain.ResourceScript
	default:
		return domain.ResourceOther
	}
}
