package description

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// shardRouterMsg is the msg value a mongos puts in its status response.
const shardRouterMsg = "isdbgrid"

// ErrMalformedResponse is returned when a status response cannot be decoded
// into a description.
var ErrMalformedResponse = errors.New("malformed status response")

// statusResponse is the subset of a hello / isMaster reply that describes a
// server. Pointer fields distinguish absent values from zero values.
type statusResponse struct {
	SetName             *string       `bson:"setName"`
	IsReplicaSet        bool          `bson:"isreplicaset"`
	IsMaster            bool          `bson:"ismaster"`
	IsWritablePrimary   bool          `bson:"isWritablePrimary"`
	Secondary           bool          `bson:"secondary"`
	ArbiterOnly         bool          `bson:"arbiterOnly"`
	Msg                 bson.RawValue `bson:"msg"`
	Hosts               []string      `bson:"hosts"`
	Passives            []string      `bson:"passives"`
	Arbiters            []string      `bson:"arbiters"`
	Primary             *string       `bson:"primary"`
	MaxBSONObjectSize   *int64        `bson:"maxBsonObjectSize"`
	MaxMessageSizeBytes *int64        `bson:"maxMessageSizeBytes"`
	Tags                bson.D        `bson:"tags"`
}

func decodeStatus(resp bson.Raw) (*statusResponse, error) {
	if len(resp) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedResponse)
	}

	var sr statusResponse
	if err := bson.Unmarshal(resp, &sr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return &sr, nil
}

// ServerTypeFromStatus classifies a server from its raw status response.
func ServerTypeFromStatus(resp bson.Raw) (ServerType, error) {
	sr, err := decodeStatus(resp)
	if err != nil {
		return Unknown, err
	}

	return sr.serverType(), nil
}

func (sr *statusResponse) serverType() ServerType {
	if sr.SetName != nil || sr.IsReplicaSet {
		switch {
		case sr.IsMaster || sr.IsWritablePrimary:
			return ReplicaSetPrimary
		case sr.Secondary:
			return ReplicaSetSecondary
		case sr.ArbiterOnly:
			return ReplicaSetArbiter
		}

		return ReplicaSetOther
	}

	if msg, ok := sr.Msg.StringValueOK(); ok && msg == shardRouterMsg {
		return ShardRouter
	}

	return Standalone
}

// NewFromStatus builds the Connected description of the server at addr from
// its status response. ok is the command's own success flag.
func NewFromStatus(addr Address, resp bson.Raw, ok bool, averageRTT time.Duration) (Server, error) {
	sr, err := decodeStatus(resp)
	if err != nil {
		return Server{}, err
	}

	p := Params{
		State:      Connected,
		Address:    addr,
		Type:       sr.serverType(),
		Hosts:      newAddressSetFromStrings(sr.Hosts),
		Passives:   newAddressSetFromStrings(sr.Passives),
		Arbiters:   newAddressSetFromStrings(sr.Arbiters),
		Tags:       tagsFromDocument(sr.Tags),
		AverageRTT: averageRTT,
		OK:         ok,
	}

	if sr.Primary != nil {
		p.Primary = Address(*sr.Primary)
	}

	if sr.SetName != nil {
		p.SetName = *sr.SetName
	}

	if sr.MaxBSONObjectSize != nil {
		p.MaxDocumentSize = int(*sr.MaxBSONObjectSize)
	}

	if sr.MaxMessageSizeBytes != nil {
		p.MaxMessageSize = int(*sr.MaxMessageSizeBytes)
	}

	return New(p), nil
}

func tagsFromDocument(doc bson.D) Tags {
	tags := make([]Tag, 0, len(doc))
	for _, elem := range doc {
		tags = append(tags, Tag{Name: elem.Key, Value: fmt.Sprint(elem.Value)})
	}

	return NewTags(tags...)
}
