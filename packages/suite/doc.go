// Package suite decodes YAML suite files into request models.
//
// A suite file has a name, suite variables and a list of calls. Each call
// describes one RequestModel (method, url, params, headers, cookies, auth,
// body, pre_request and post_request operations) plus the per-call
// overrides under "call":
//
//	name: users
//	variables:
//	  user_id: 42
//	calls:
//	  - name: get user
//	    url: /users/{id}
//	    auth: {type: bearer, token: "{{token}}"}
//	    call:
//	      path_params: {id: 42}
//	    post_request:
//	      - type: assert
//	        path: $.id
//	        expected: 42
package suite
