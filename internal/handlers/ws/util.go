package ws

import (
	"encoding/json"
)

func Deserialize(jsonBytes []byte) (Message, error) {
	var wrapper SerializedMessage
	if err := json.Unmarshal(jsonBytes, &wrapper); err != nil {
		return nil, err
	}

	msg, err := CreateMessage(wrapper.Type, typeRegistry)
	if err != nil {
		return nil, err
	}
	if len(wrapper.Payload) > 0 {
		if err := json.Unmarshal(wrapper.Payload, msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}
