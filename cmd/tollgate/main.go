// Package main is the entry point for Tollgate.
//
//	@title						Tollgate - Entitlement & Usage Metering
//	@version					1.0
//	@description				Subscription entitlement and usage metering service: tier resolution, atomic quota enforcement, and billing session brokering.
//
//	@contact.name				Tollgate Support
//	@contact.url				https://github.com/artpar/tollgate/issues
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication (format: "Bearer {token}")
package main

func main() {
	Execute()
}
