package ebookcentral

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("scrapers/ebookcentral")
