// Package wire implements the Jupyter messaging protocol v5.3 wire codec:
// framing, canonical JSON, and HMAC signing/verification of multi-frame
// ZeroMQ messages.
package wire

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"hash"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

// Delimiter is the literal frame separating routing identities from the
// signed message frames.
const Delimiter = "<IDS|MSG>"

// ProtocolVersion is the Jupyter messaging protocol version this codec speaks.
const ProtocolVersion = "5.3"

// Sentinel error kinds. Wrapped with context via github.com/pkg/errors; callers
// should use errors.Is against these to classify a parse failure per §7.
var (
	ErrBadFrame     = errors.New("wire: malformed frame")
	ErrBadSignature = errors.New("wire: signature mismatch")
	ErrEncode       = errors.New("wire: content not JSON-encodable")
)

// Header is the Jupyter message header. Fields are declared in the exact
// alphabetical order of their JSON tags so that encoding/json's fixed
// struct-field emission order already satisfies the "keys sorted" canonical
// JSON rule, without reaching for a generic sorted-map encoder.
type Header struct {
	Date     string `json:"date"`
	MsgID    string `json:"msg_id"`
	MsgType  string `json:"msg_type"`
	Session  string `json:"session"`
	Username string `json:"username"`
	Version  string `json:"version"`
}

// IsZero reports whether h is the empty header (used to render an absent
// parent_header as the literal `{}`, matching the original Python wire
// format rather than Go's zero-valued-struct rendering).
func (h Header) IsZero() bool {
	return h.MsgID == "" && h.MsgType == "" && h.Session == ""
}

// MarshalJSON renders a zero Header as `{}`, matching a message with no
// parent.
func (h Header) MarshalJSON() ([]byte, error) {
	if h.IsZero() {
		return []byte("{}"), nil
	}
	type alias Header
	return json.Marshal(alias(h))
}

// NewHeader builds a header for a freshly originated message (not a reply).
func NewHeader(msgType, session, username string) (Header, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Header{}, errors.Wrap(err, "generating msg_id")
	}
	return Header{
		Date:     time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		MsgID:    id.String(),
		MsgType:  msgType,
		Session:  session,
		Username: username,
		Version:  ProtocolVersion,
	}, nil
}

// Message is a parsed or to-be-serialized Jupyter wire message. Content is
// json.RawMessage after Parse (the dispatcher decodes it per msg_type), and
// any JSON-marshalable value before Serialize.
type Message struct {
	Identities   [][]byte
	Header       Header
	ParentHeader Header
	Metadata     map[string]interface{}
	Content      interface{}
	Buffers      [][]byte
}

// Codec signs and verifies frames for one kernel session's key and signature
// scheme.
type Codec struct {
	Key    []byte
	Scheme string
}

// NewCodec returns a Codec for key and scheme; an empty scheme defaults to
// hmac-sha256 per §3's Kernel data model.
func NewCodec(key []byte, scheme string) *Codec {
	if scheme == "" {
		scheme = "hmac-sha256"
	}
	return &Codec{Key: key, Scheme: scheme}
}

func (c *Codec) hasher() func() hash.Hash {
	switch c.Scheme {
	case "hmac-sha1":
		return sha1.New
	case "hmac-sha512":
		return sha512.New
	default:
		return sha256.New
	}
}

func (c *Codec) sign(parts [4][]byte) string {
	if len(c.Key) == 0 {
		return ""
	}
	mac := hmac.New(c.hasher(), c.Key)
	for _, p := range parts {
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Parse walks frames collecting routing identities until the delimiter,
// verifies the HMAC signature over the four JSON frames, and decodes
// header/parent_header/metadata. Content is left as json.RawMessage for the
// dispatcher to decode against the concrete type for Header.MsgType.
func (c *Codec) Parse(frames [][]byte) (*Message, error) {
	i := 0
	for i < len(frames) && string(frames[i]) != Delimiter {
		i++
	}
	if i >= len(frames) {
		return nil, errors.Wrap(ErrBadFrame, "no delimiter frame found")
	}
	if len(frames) < i+6 {
		return nil, errors.Wrap(ErrBadFrame, "fewer than four JSON frames after signature")
	}

	identities := frames[:i]
	sigFrame := frames[i+1]
	jsonParts := [4][]byte{frames[i+2], frames[i+3], frames[i+4], frames[i+5]}

	if len(c.Key) > 0 {
		want := c.sign(jsonParts)
		got, err := hex.DecodeString(strings.ToLower(string(sigFrame)))
		if err != nil {
			return nil, errors.Wrap(ErrBadSignature, "signature frame is not hex")
		}
		wantBytes, _ := hex.DecodeString(want)
		if !hmac.Equal(got, wantBytes) {
			return nil, errors.WithStack(ErrBadSignature)
		}
	}

	msg := &Message{Identities: identities}
	if err := json.Unmarshal(jsonParts[0], &msg.Header); err != nil {
		return nil, errors.Wrap(ErrBadFrame, "decoding header: "+err.Error())
	}
	if err := json.Unmarshal(jsonParts[1], &msg.ParentHeader); err != nil {
		return nil, errors.Wrap(ErrBadFrame, "decoding parent_header: "+err.Error())
	}
	if err := json.Unmarshal(jsonParts[2], &msg.Metadata); err != nil {
		return nil, errors.Wrap(ErrBadFrame, "decoding metadata: "+err.Error())
	}
	msg.Content = json.RawMessage(jsonParts[3])
	if len(frames) > i+6 {
		msg.Buffers = frames[i+6:]
	}
	if msg.Header.MsgType == "" {
		return nil, errors.Wrap(ErrBadFrame, "header missing msg_type")
	}
	return msg, nil
}

// Serialize renders msg into wire frames, prefixed by routing (either the
// original routing identities for a shell/control/stdin reply, or a single
// IOPub topic frame for a broadcast).
func (c *Codec) Serialize(msg *Message, routing [][]byte) ([][]byte, error) {
	header, err := json.Marshal(msg.Header)
	if err != nil {
		return nil, errors.Wrap(ErrEncode, "header: "+err.Error())
	}
	parentHeader, err := json.Marshal(msg.ParentHeader)
	if err != nil {
		return nil, errors.Wrap(ErrEncode, "parent_header: "+err.Error())
	}
	metadata := msg.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, errors.Wrap(ErrEncode, "metadata: "+err.Error())
	}
	content := msg.Content
	if content == nil {
		content = map[string]interface{}{}
	}
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return nil, errors.Wrap(ErrEncode, "content: "+err.Error())
	}
	// Struct-typed content marshals in field order; re-encode it through a
	// generic value so its keys come out sorted like the other frames.
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(contentBytes))
	dec.UseNumber()
	if err := dec.Decode(&generic); err == nil {
		if sorted, err := json.Marshal(generic); err == nil {
			contentBytes = sorted
		}
	}

	jsonParts := [4][]byte{header, parentHeader, metadataBytes, contentBytes}
	sig := c.sign(jsonParts)

	frames := make([][]byte, 0, len(routing)+2+4+len(msg.Buffers))
	frames = append(frames, routing...)
	frames = append(frames, []byte(Delimiter))
	frames = append(frames, []byte(sig))
	frames = append(frames, header, parentHeader, metadataBytes, contentBytes)
	frames = append(frames, msg.Buffers...)
	return frames, nil
}

// IOPubTopic builds the topic frame Jupyter clients filter IOPub broadcasts
// on, per §3's "ids" field.
func IOPubTopic(kernelID, msgType string) []byte {
	return []byte("kernel." + kernelID + "." + msgType)
}
