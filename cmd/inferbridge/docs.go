package main

// General API documentation for swaggo. The ops document is checked in under
// internal/httpapi/docs.go.
//
// @title           inferbridge ops API
// @version         1.0
// @description     Status and metrics of the on-device inference bridge.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
