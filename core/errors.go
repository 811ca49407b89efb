// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a CatalogRecord failed validation.
	ErrInvalidRecord = errors.New("invalid catalog record")

	// ErrInvalidEmbeddedRecord indicates an EmbeddedRecord failed validation.
	ErrInvalidEmbeddedRecord = errors.New("invalid embedded record")

	// ErrEmptyID indicates the record has no external identifier.
	ErrEmptyID = errors.New("record id cannot be empty")

	// ErrTooManyCategories indicates more than MaxCategories categories.
	ErrTooManyCategories = errors.New("too many categories")

	// ErrInvalidPrice indicates a negative or non-finite price.
	ErrInvalidPrice = errors.New("price must be a non-negative number")

	// ErrInvalidRating indicates a rating outside [0, MaxRating].
	ErrInvalidRating = errors.New("rating out of range")

	// ErrInvalidReviewCount indicates a negative review count.
	ErrInvalidReviewCount = errors.New("review count cannot be negative")

	// ErrVectorDimension indicates a vector whose length differs from the configured dimension.
	ErrVectorDimension = errors.New("vector dimension mismatch")

	// ErrUnknownVectorColumn indicates a projection name that is not title, description or combined.
	ErrUnknownVectorColumn = errors.New("unknown vector column")
)
