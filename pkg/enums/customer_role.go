package enums

// CustomerRole is carried in access tokens.
type CustomerRole string

const (
	CustomerRoleCustomer CustomerRole = "customer"
	CustomerRoleAdmin    CustomerRole = "admin"
)

var customerRoles = values[CustomerRole]{CustomerRoleCustomer, CustomerRoleAdmin}

func (r CustomerRole) String() string { return string(r) }

func (r CustomerRole) IsValid() bool { return customerRoles.contains(r) }
