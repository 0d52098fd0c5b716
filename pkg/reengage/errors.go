package reengage

import "errors"

var (
	ErrTopicNotFound  = errors.New("topic not found")
	ErrInvalidCatalog = errors.New("invalid topic catalog")
)
