// Package extraction builds multipart extraction requests from the upload
// set, prompt, settings and schema, and submits them to the extraction
// service, decoding the data and usage it returns.
package extraction
