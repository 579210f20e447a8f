package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// =============================================================================
// JSON-RPC Envelope
// =============================================================================

// RPCRequest is a JSON-RPC 2.0 request.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error reported by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// =============================================================================
// Scalars
// =============================================================================

// SequenceNumber is an object version. Nodes encode it either as a JSON string or number.
type SequenceNumber string

// UnmarshalJSON accepts "12" and 12.
func (s *SequenceNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SequenceNumber(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("sequence number: %w", err)
	}
	*s = SequenceNumber(n.String())
	return nil
}

// Uint64 parses the version; zero when unparseable.
func (s SequenceNumber) Uint64() uint64 {
	v, _ := strconv.ParseUint(string(s), 10, 64)
	return v
}

// =============================================================================
// Owner
// =============================================================================

// OwnerKind discriminates Owner.
type OwnerKind string

const (
	OwnerAddress   OwnerKind = "AddressOwner"
	OwnerObject    OwnerKind = "ObjectOwner"
	OwnerShared    OwnerKind = "Shared"
	OwnerImmutable OwnerKind = "Immutable"
	OwnerUnknown   OwnerKind = "Unknown"
)

// Owner is the ownership of an object.
type Owner struct {
	Kind                 OwnerKind
	Address              string
	InitialSharedVersion uint64
}

// UnmarshalJSON decodes the node's owner encodings:
// {"AddressOwner":"0x.."}, {"ObjectOwner":"0x.."}, {"Shared":{"initial_shared_version":n}}, "Immutable".
func (o *Owner) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	switch {
	case res.Type == gjson.Null:
		*o = Owner{}
	case res.Type == gjson.String:
		if res.String() == string(OwnerImmutable) {
			*o = Owner{Kind: OwnerImmutable}
		} else {
			*o = Owner{Kind: OwnerUnknown, Address: res.String()}
		}
	case res.Get("AddressOwner").Exists():
		*o = Owner{Kind: OwnerAddress, Address: res.Get("AddressOwner").String()}
	case res.Get("ObjectOwner").Exists():
		*o = Owner{Kind: OwnerObject, Address: res.Get("ObjectOwner").String()}
	case res.Get("Shared").Exists():
		*o = Owner{Kind: OwnerShared, InitialSharedVersion: res.Get("Shared.initial_shared_version").Uint()}
	case res.Get("ConsensusAddressOwner.owner").Exists():
		*o = Owner{Kind: OwnerAddress, Address: res.Get("ConsensusAddressOwner.owner").String()}
	default:
		*o = Owner{Kind: OwnerUnknown, Address: res.Raw}
	}
	return nil
}

// String renders the owner for display and storage.
func (o Owner) String() string {
	switch o.Kind {
	case OwnerAddress, OwnerObject, OwnerUnknown:
		return o.Address
	case OwnerShared:
		return "shared"
	case OwnerImmutable:
		return "immutable"
	default:
		return ""
	}
}

// =============================================================================
// Object Changes (tagged union)
// =============================================================================

// ChangeType is the discriminator of an object change.
type ChangeType string

const (
	ChangeCreated     ChangeType = "created"
	ChangeMutated     ChangeType = "mutated"
	ChangeDeleted     ChangeType = "deleted"
	ChangeWrapped     ChangeType = "wrapped"
	ChangePublished   ChangeType = "published"
	ChangeTransferred ChangeType = "transferred"
)

// ObjectChange is one entry of a transaction's object-change list.
// Implementations: *CreatedChange, *MutatedChange, *DeletedChange, *WrappedChange,
// *PublishedChange, *TransferredChange, *UnknownChange.
type ObjectChange interface {
	ChangeType() ChangeType
}

// CreatedChange reports an object created by the transaction.
type CreatedChange struct {
	Sender     string         `json:"sender"`
	Owner      Owner          `json:"owner"`
	ObjectType string         `json:"objectType"`
	ObjectID   string         `json:"objectId"`
	Version    SequenceNumber `json:"version"`
	Digest     string         `json:"digest"`
}

// MutatedChange reports an object mutated by the transaction.
type MutatedChange struct {
	Sender          string         `json:"sender"`
	Owner           Owner          `json:"owner"`
	ObjectType      string         `json:"objectType"`
	ObjectID        string         `json:"objectId"`
	Version         SequenceNumber `json:"version"`
	PreviousVersion SequenceNumber `json:"previousVersion"`
	Digest          string         `json:"digest"`
}

// DeletedChange reports an object deleted by the transaction.
type DeletedChange struct {
	Sender     string         `json:"sender"`
	ObjectType string         `json:"objectType"`
	ObjectID   string         `json:"objectId"`
	Version    SequenceNumber `json:"version"`
}

// WrappedChange reports an object wrapped into another object.
type WrappedChange struct {
	Sender     string         `json:"sender"`
	ObjectType string         `json:"objectType"`
	ObjectID   string         `json:"objectId"`
	Version    SequenceNumber `json:"version"`
}

// PublishedChange reports a package publication.
type PublishedChange struct {
	PackageID string         `json:"packageId"`
	Version   SequenceNumber `json:"version"`
	Digest    string         `json:"digest"`
	Modules   []string       `json:"modules"`
}

// TransferredChange reports an object transferred to a recipient.
type TransferredChange struct {
	Sender     string         `json:"sender"`
	Recipient  Owner          `json:"recipient"`
	ObjectType string         `json:"objectType"`
	ObjectID   string         `json:"objectId"`
	Version    SequenceNumber `json:"version"`
	Digest     string         `json:"digest"`
}

// UnknownChange keeps change variants this client does not model.
type UnknownChange struct {
	Type string
	Raw  json.RawMessage
}

func (*CreatedChange) ChangeType() ChangeType     { return ChangeCreated }
func (*MutatedChange) ChangeType() ChangeType     { return ChangeMutated }
func (*DeletedChange) ChangeType() ChangeType     { return ChangeDeleted }
func (*WrappedChange) ChangeType() ChangeType     { return ChangeWrapped }
func (*PublishedChange) ChangeType() ChangeType   { return ChangePublished }
func (*TransferredChange) ChangeType() ChangeType { return ChangeTransferred }
func (c *UnknownChange) ChangeType() ChangeType   { return ChangeType(c.Type) }

// ObjectChanges decodes a heterogeneous object-change list by its "type" discriminator.
type ObjectChanges []ObjectChange

// UnmarshalJSON implements json.Unmarshaler.
func (cs *ObjectChanges) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("object changes: %w", err)
	}
	out := make(ObjectChanges, 0, len(raws))
	for i, raw := range raws {
		change, err := decodeObjectChange(raw)
		if err != nil {
			return fmt.Errorf("object change %d: %w", i, err)
		}
		out = append(out, change)
	}
	*cs = out
	return nil
}

func decodeObjectChange(raw json.RawMessage) (ObjectChange, error) {
	kind := ChangeType(gjson.GetBytes(raw, "type").String())
	var change ObjectChange
	switch kind {
	case ChangeCreated:
		change = &CreatedChange{}
	case ChangeMutated:
		change = &MutatedChange{}
	case ChangeDeleted:
		change = &DeletedChange{}
	case ChangeWrapped:
		change = &WrappedChange{}
	case ChangePublished:
		change = &PublishedChange{}
	case ChangeTransferred:
		change = &TransferredChange{}
	default:
		return &UnknownChange{Type: string(kind), Raw: raw}, nil
	}
	if err := json.Unmarshal(raw, change); err != nil {
		return nil, err
	}
	return change, nil
}

// =============================================================================
// Object Content (tagged union)
// =============================================================================

// ObjectContent is the parsed content of an object: *MoveObjectContent or *PackageContent.
// A nil ObjectContent means the node returned no content.
type ObjectContent interface {
	DataType() string
}

// MoveObjectContent is a Move struct with its field map.
type MoveObjectContent struct {
	Type              string          `json:"type"`
	HasPublicTransfer bool            `json:"hasPublicTransfer"`
	Fields            json.RawMessage `json:"fields"`
}

// PackageContent is a published package.
type PackageContent struct {
	Disassembled map[string]json.RawMessage `json:"disassembled"`
}

func (*MoveObjectContent) DataType() string { return "moveObject" }
func (*PackageContent) DataType() string    { return "package" }

func decodeContent(raw json.RawMessage) (ObjectContent, error) {
	if len(raw) == 0 || gjson.ParseBytes(raw).Type == gjson.Null {
		return nil, nil
	}
	switch dt := gjson.GetBytes(raw, "dataType").String(); dt {
	case "moveObject":
		var c MoveObjectContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("move object content: %w", err)
		}
		return &c, nil
	case "package":
		var c PackageContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("package content: %w", err)
		}
		return &c, nil
	default:
		return nil, fmt.Errorf("unknown content dataType %q", dt)
	}
}

// =============================================================================
// Objects
// =============================================================================

// Object is the data of a fetched object.
type Object struct {
	ObjectID            string         `json:"objectId"`
	Version             SequenceNumber `json:"version"`
	Digest              string         `json:"digest"`
	Type                string         `json:"type"`
	Owner               Owner          `json:"owner"`
	PreviousTransaction string         `json:"previousTransaction"`
	Content             ObjectContent  `json:"-"`
}

// UnmarshalJSON decodes the object and its tagged content.
func (o *Object) UnmarshalJSON(data []byte) error {
	type alias Object
	var aux struct {
		alias
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	content, err := decodeContent(aux.Content)
	if err != nil {
		return err
	}
	*o = Object(aux.alias)
	o.Content = content
	// Some responses only carry the type inside the content.
	if o.Type == "" {
		if mo, ok := content.(*MoveObjectContent); ok {
			o.Type = mo.Type
		}
	}
	return nil
}

// ObjectError is the error half of an object response.
type ObjectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id"`
	Error    string `json:"error"`
}

// ObjectResponse is one entry of sui_getObject / owned-objects results.
type ObjectResponse struct {
	Data  *Object      `json:"data"`
	Error *ObjectError `json:"error"`
}

// ObjectPage is a page of owned objects.
type ObjectPage struct {
	Data        []ObjectResponse `json:"data"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
}

// =============================================================================
// Transactions
// =============================================================================

// ObjectRef identifies an object at a version.
type ObjectRef struct {
	ObjectID string         `json:"objectId"`
	Version  SequenceNumber `json:"version"`
	Digest   string         `json:"digest"`
}

// OwnedObjectRef is an object reference plus its owner, as listed in effects.
type OwnedObjectRef struct {
	Owner     Owner     `json:"owner"`
	Reference ObjectRef `json:"reference"`
}

// ExecutionStatus is the effects status.
type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Succeeded reports whether the transaction executed successfully.
func (s ExecutionStatus) Succeeded() bool {
	return s.Status == "success"
}

// TransactionEffects is the subset of effects used by the registry.
type TransactionEffects struct {
	Status            ExecutionStatus  `json:"status"`
	TransactionDigest string           `json:"transactionDigest"`
	Created           []OwnedObjectRef `json:"created"`
	Mutated           []OwnedObjectRef `json:"mutated"`
}

// TransactionBlock is an executed or queried transaction.
type TransactionBlock struct {
	Digest        string              `json:"digest"`
	Effects       *TransactionEffects `json:"effects"`
	ObjectChanges ObjectChanges       `json:"objectChanges"`
	TimestampMs   SequenceNumber      `json:"timestampMs"`
	Checkpoint    SequenceNumber      `json:"checkpoint"`
}

// TransactionPage is a page of queried transactions.
type TransactionPage struct {
	Data        []TransactionBlock `json:"data"`
	NextCursor  *string            `json:"nextCursor"`
	HasNextPage bool               `json:"hasNextPage"`
}

// =============================================================================
// Requests
// =============================================================================

// TxSpec describes a Move call to build, sign and execute.
type TxSpec struct {
	Package       string
	Module        string
	Function      string
	TypeArguments []string
	Arguments     []interface{}
	GasBudget     uint64
}

// FunctionQuery selects transactions that invoked a Move function.
type FunctionQuery struct {
	Package    string
	Module     string
	Function   string
	Cursor     *string
	Limit      int
	Descending bool
}

// OwnedQuery selects objects of StructType owned by Owner.
type OwnedQuery struct {
	Owner      string
	StructType string
	Cursor     *string
	Limit      int
}
