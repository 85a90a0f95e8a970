// Package httpclient provides a configurable HTTP client with built-in
// resilience (retry, circuit breaker) and multipart upload support. It is
// the transport layer for the sidecar services assessd depends on, such as
// the speech-to-text engine.
//
// # Basic Usage
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "http://localhost:9300",
//	    Timeout: 30 * time.Second,
//	})
//
//	resp, err := client.Do(ctx, httpclient.Request{
//	    Method: http.MethodGet,
//	    Path:   "/health",
//	})
//
// # With Resilience
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL:        "http://localhost:9300",
//	    Retry:          httpclient.DefaultRetryConfig(),
//	    CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("whisper"),
//	})
//
// # Multipart Uploads
//
//	resp, err := client.Do(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "/transcribe",
//	    Body: &httpclient.MultipartBody{
//	        Fields: map[string]string{"language": "es"},
//	        Files: []httpclient.FileField{{
//	            FieldName:   "audio",
//	            FileName:    "answer.wav",
//	            ContentType: "audio/wav",
//	            Data:        wav,
//	        }},
//	    },
//	})
package httpclient
