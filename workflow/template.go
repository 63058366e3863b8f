package workflow

// ConfigTemplate returns an annotated example workflow document.
func ConfigTemplate() string {
	return configTemplate
}

const configTemplate = `# Example workflow configuration
workflow:
  # Global settings
  global:
    variables:
      base_url: "https://api.example.com"
      api_version: "v1"

  # Test steps
  steps:
    # 1. Log in
    - id: "login"
      name: "User login"
      method: "POST"
      url: "${base_url}/auth/login"
      description: "Obtain an access token"
      request_body:
        username: "test_user"
        password: "test_password"
      expected_status: 200
      validations:
        - type: "json_path"
          path: "$.token"
          condition: "not_null"
      parameters:
        extract:
          token: "token"
          user_id: "user.id"
        # every alias is readable as ${token} and as ${login.token}; set
        # scoped: true to keep them step-scoped except those listed in publish

    # 2. Fetch the current user
    - id: "get_user_info"
      name: "Get user info"
      method: "GET"
      url: "${base_url}/users/@{login.extracted.user_id}"
      description: "Fetch the logged in user's details"
      dependencies: ["login"]
      dependency_type: "data"
      preconditions:
        - "${token} != null"
      headers:
        Authorization: "Bearer @{login.extracted.token}"
      expected_status: 200

    # 3. Create an order
    - id: "create_order"
      name: "Create order"
      method: "POST"
      url: "${base_url}/orders"
      description: "Create a new order"
      dependencies: ["login"]
      dependency_type: "auth"
      headers:
        Authorization: "Bearer @{login.extracted.token}"
      request_body:
        user_id: "@{login.extracted.user_id}"
        items:
          - product_id: 1
            quantity: 2
          - product_id: 2
            quantity: 1
      expected_status: 201
      parameters:
        extract:
          order_id: "id"
          order_status: "status"

    # 4. Fetch order details
    - id: "get_order_details"
      name: "Get order details"
      method: "GET"
      url: "${base_url}/orders/@{create_order.extracted.order_id}"
      description: "Fetch the order created above"
      dependencies: ["create_order"]
      dependency_type: "data"
      headers:
        Authorization: "Bearer @{login.extracted.token}"
      expected_status: 200
      validations:
        - type: "json_path"
          path: "$.status"
          condition: "equals"
          expected: "pending"

    # 5. Confirm the order
    - id: "update_order_status"
      name: "Update order status"
      method: "PUT"
      url: "${base_url}/orders/@{create_order.extracted.order_id}/status"
      description: "Move the order to confirmed"
      dependencies: ["get_order_details"]
      dependency_type: "sequence"
      headers:
        Authorization: "Bearer @{login.extracted.token}"
      request_body:
        status: "confirmed"
      expected_status: 200
      postconditions:
        - "${create_order_id} != null"

    # 6. Log out
    - id: "logout"
      name: "User logout"
      method: "POST"
      url: "${base_url}/auth/logout"
      description: "End the session"
      dependencies: ["update_order_status"]
      dependency_type: "sequence"
      headers:
        Authorization: "Bearer @{login.extracted.token}"
      expected_status: 200
`
