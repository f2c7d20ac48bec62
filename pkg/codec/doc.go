// Package codec provides content decoders and encoders resolved by
// content type. Decoders turn raw request bytes into typed values for
// body matching; encoders turn typed response payloads into bytes.
//
// Registries nest: a lookup consults the registry itself first and then
// walks parent registries, so a responder-local registration shadows an
// expectation-local one, which shadows the server-global one.
package codec
