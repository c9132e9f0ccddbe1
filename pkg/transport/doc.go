// Package transport declares the agent→server gRPC service without generated
// code. Messages are the plain structs in pkg/types, carried by a JSON codec
// registered under the "json" content-subtype.
//
//	service qexp.v1.ResultService {
//	  rpc SendResult(FitSnapshot) returns (SendResponse);
//	}
//
// Importing the package registers the codec. Clients created with
// NewResultServiceClient select it on every call; servers pick it from the
// request content type.
package transport
