// Package main Media Upload Broker API
//
//	@title						Media Upload Broker API
//	@version					1.0
//	@description				Issues short-lived presigned URLs for direct-to-storage uploads and manages stored media.
//	@termsOfService				https://uniedit.io/terms
//
//	@contact.name				UniEdit Support
//	@contact.url				https://uniedit.io/support
//	@contact.email				support@uniedit.io
//
//	@license.name				Proprietary
//	@license.url				https://uniedit.io/license
//
//	@host						localhost:8080
//	@BasePath					/api
//
//	@tag.name					Upload
//	@tag.description			Single-shot and multipart upload authorization
//
//	@tag.name					Media
//	@tag.description			Stored media listing and deletion
package main
