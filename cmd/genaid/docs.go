package main

// General API documentation for swaggo. Run `swag init` to generate docs.
//
// @title           genaid API
// @version         1.0
// @description     HTTP API for inference-graph model management and generation.
//
// @contact.name   genaid maintainers
// @contact.url    https://github.com/your-org/genaid
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
