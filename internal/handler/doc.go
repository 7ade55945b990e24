// Package handler 按领域分包的 HTTP 处理器，本文件只承载 swag 的全局注解
//
// 生成文档：swag init -g internal/handler/doc.go --dir ./ -o docs
//
//	@title						Villa Booking API
//	@version					1.0
//	@description				别墅可订日历、预订提交与确认、房东日历维护
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer 访问令牌，由账号服务签发
package handler
