package semantic

import (
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
)

// payloadTextKey is the payload field holding the chunk text itself.
const payloadTextKey = "text"

// PointID derives the Qdrant point UUID for a chunk ID. Qdrant point ids
// must be UUIDs; the readable chunk ID lives in the payload under
// "chunk_id". Same chunk ID, same point, always.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// payloadFromMeta builds a Qdrant payload from record text and metadata.
// All metadata values are stored as strings.
func payloadFromMeta(text string, meta map[string]string) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(meta)+1)
	payload[payloadTextKey] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: text}}
	for k, v := range meta {
		payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
	}
	return payload
}

// metaFromPayload flattens a point payload into the chunk text plus string
// metadata, coercing non-string payload values written by other clients.
func metaFromPayload(payload map[string]*pb.Value) (string, map[string]string) {
	var text string
	meta := make(map[string]string, len(payload))
	for k, v := range payload {
		s := payloadString(v)
		if k == payloadTextKey {
			text = s
			continue
		}
		meta[k] = s
	}
	return text, meta
}

func payloadString(v *pb.Value) string {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return strconv.FormatInt(kind.IntegerValue, 10)
	case *pb.Value_DoubleValue:
		return strconv.FormatFloat(kind.DoubleValue, 'g', -1, 64)
	case *pb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	default:
		return ""
	}
}
