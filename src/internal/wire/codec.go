package wire

import (
	"fmt"
	"sync"

	"github.com/hyperloop/hyperloop-go/src/hyperloop"
	"github.com/ugorji/go/codec"
)

// envelope is the flattened wire representation of every message kind. Only
// the fields relevant to a given kind are populated.
type envelope struct {
	Type     Kind               `json:"type"`
	ID       string             `json:"id,omitempty"`
	CallID   string             `json:"call_identifier,omitempty"`
	Trace    string             `json:"trace,omitempty"`
	Version  string             `json:"version,omitempty"`
	ArgsInfo hyperloop.ArgsInfo `json:"args_info,omitempty"`
	Args     codec.Raw          `json:"args,omitempty"`
	Data     codec.Raw          `json:"data,omitempty"`
}

var handle codec.JsonHandle

var encoders sync.Pool
var decoders sync.Pool

func init() {
	handle.Raw = true

	encoders.New = func() interface{} {
		return codec.NewEncoderBytes(nil, &handle)
	}

	decoders.New = func() interface{} {
		return codec.NewDecoderBytes(nil, &handle)
	}
}

// Marshal renders m as a JSON text message.
func Marshal(m Message) ([]byte, error) {
	var env envelope
	env.Type = m.Kind()

	switch msg := m.(type) {
	case Register:
		env.ID = msg.ID
	case Registered:
		env.Version = msg.Version
	case RegisterFunction:
		env.ID = msg.ID
		env.ArgsInfo = msg.Args
	case Call:
		env.ID = msg.ID
		env.CallID = msg.CallID
		env.Trace = msg.Trace
		env.Args = msg.Args
	case ReturnValue:
		env.CallID = msg.CallID
		env.Data = msg.Data
	case ListFunctions:
		env.CallID = msg.CallID
	case Broadcast:
		env.Data = msg.Data
	default:
		return nil, fmt.Errorf("unsupported message type %T", m)
	}

	return encodeBytes(&env)
}

// Unmarshal parses a JSON text message into its concrete message type.
//
// A message that can not be parsed, names an unknown type, or omits a field
// its type requires produces a ProtocolError.
func Unmarshal(data []byte) (Message, error) {
	var env envelope
	if err := Decode(data, &env); err != nil {
		return nil, hyperloop.ProtocolError(
			fmt.Sprintf("malformed message: %s", err),
		)
	}

	switch env.Type {
	case KindRegister:
		return Register{ID: env.ID}, nil

	case KindRegistered:
		return Registered{Version: env.Version}, nil

	case KindRegisterFunction:
		if env.ID == "" {
			return nil, missingField(env.Type, "id")
		}
		return RegisterFunction{ID: env.ID, Args: env.ArgsInfo}, nil

	case KindCall:
		if env.ID == "" {
			return nil, missingField(env.Type, "id")
		}
		if env.CallID == "" {
			return nil, missingField(env.Type, "call_identifier")
		}
		return Call{
			ID:     env.ID,
			CallID: env.CallID,
			Trace:  env.Trace,
			Args:   env.Args,
		}, nil

	case KindReturnValue:
		if env.CallID == "" {
			return nil, missingField(env.Type, "call_identifier")
		}
		return ReturnValue{CallID: env.CallID, Data: env.Data}, nil

	case KindListFunctions:
		if env.CallID == "" {
			return nil, missingField(env.Type, "call_identifier")
		}
		return ListFunctions{CallID: env.CallID}, nil

	case KindBroadcast:
		return Broadcast{Data: env.Data}, nil
	}

	return nil, hyperloop.ProtocolError(
		fmt.Sprintf("unknown message type '%s'", env.Type),
	)
}

// Encode renders v as raw JSON suitable for an opaque args/data field.
func Encode(v interface{}) (codec.Raw, error) {
	buf, err := encodeBytes(v)
	return codec.Raw(buf), err
}

// Decode unpacks raw JSON into v.
func Decode(data []byte, v interface{}) error {
	d := decoders.Get().(*codec.Decoder)
	defer decoders.Put(d)

	d.ResetBytes(data)
	return d.Decode(v)
}

func encodeBytes(v interface{}) ([]byte, error) {
	e := encoders.Get().(*codec.Encoder)
	defer encoders.Put(e)

	var buf []byte
	e.ResetBytes(&buf)

	err := e.Encode(v)
	return buf, err
}

func missingField(kind Kind, field string) error {
	return hyperloop.ProtocolError(
		fmt.Sprintf("'%s' message is missing the '%s' field", kind, field),
	)
}
