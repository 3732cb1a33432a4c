package repository

import (
	"fleetrental/internal/entityapi"
)

func decodeAll[T any](docs []entityapi.Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := entityapi.Decode(doc, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func decodeOne[T any](doc entityapi.Document) (*T, error) {
	var item T
	if err := entityapi.Decode(doc, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
