package codec

import (
	"encoding/base64"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"
)

// EnvelopeVersion is the only envelope version this codec understands.
const EnvelopeVersion = 1

// Envelope is the JSON wrapper every wire message travels in:
// {"version":1,"msg":"<tag>","data":"<base64(rlp(fields))>"}.
type Envelope struct {
	Version int    `json:"version"`
	Msg     string `json:"msg"`
	Data    string `json:"data"`
}

// Envelop RLP-encodes payload and wraps it in an Envelope tagged with tag.
func Envelop(tag string, payload interface{}) (Envelope, error) {
	if _, ok := cmdidForTag[tag]; !ok {
		return Envelope{}, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	enc, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: encode: %v", ErrMalformedMessage, err)
	}
	return Envelope{
		Version: EnvelopeVersion,
		Msg:     tag,
		Data:    base64.StdEncoding.EncodeToString(enc),
	}, nil
}

// Open validates the envelope version, decodes its RLP payload into out,
// and checks the payload's own Cmdid field against the envelope's tag.
func (e Envelope) Open(out interface{}) error {
	if e.Version != EnvelopeVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, e.Version)
	}
	if _, ok := cmdidForTag[e.Msg]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTag, e.Msg)
	}
	data, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return fmt.Errorf("%w: base64: %v", ErrMalformedMessage, err)
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return fmt.Errorf("%w: rlp: %v", ErrMalformedMessage, err)
	}
	v := reflect.Indirect(reflect.ValueOf(out))
	if v.Kind() == reflect.Struct {
		if p := v.FieldByName("Payload"); p.IsValid() && p.Kind() == reflect.Struct {
			v = p
		}
		if c := v.FieldByName("Cmdid"); c.IsValid() && c.Kind() == reflect.Uint32 && Cmdid(c.Uint()) != cmdidForTag[e.Msg] {
			return fmt.Errorf("%w: cmdid %d does not match tag %s", ErrMalformedMessage, c.Uint(), e.Msg)
		}
	}
	return nil
}

// CmdidForTag returns the expected cmdid for a message tag and whether the
// tag is known.
func CmdidForTag(tag string) (Cmdid, bool) {
	id, ok := cmdidForTag[tag]
	return id, ok
}
