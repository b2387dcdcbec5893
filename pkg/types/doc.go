// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for paper-fetch: input
// records, acquired paper metadata, and configuration for the acquisition
// engine and its sources.
package types
