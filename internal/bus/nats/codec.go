package nats

import "encoding/json"

func encode(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

func decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
